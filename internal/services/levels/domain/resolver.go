// Package domain holds the level and song entities and the tiered
// resolution core: every read walks cache, then persistent store, then
// (songs only) the external catalog, backfilling each faster tier as a
// side effect of a slower hit.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/louisbranch/levelvault/internal/services/levels/cache"
	"github.com/louisbranch/levelvault/internal/services/levels/catalog"
	"github.com/louisbranch/levelvault/internal/services/levels/storage"
)

var (
	// ErrNotFound indicates an identifier absent from every tier. It is
	// a routine outcome, not a failure.
	ErrNotFound = errors.New("entity not found")
	// ErrAlreadyUploaded indicates an insert on an entity that already
	// carries an assigned identifier.
	ErrAlreadyUploaded = errors.New("level already uploaded")
	// ErrNotUploaded indicates an update on an entity that was never
	// inserted.
	ErrNotUploaded = errors.New("level not uploaded yet")
)

// SongResolver resolves songs through the cache, store and external
// catalog tiers. Concurrent misses for one identifier share a single
// tier chain, so the catalog is asked at most once per miss.
type SongResolver struct {
	store   storage.SongStore
	catalog SongCatalog // optional; nil disables the external tier
	cache   *cache.Entities[*Song]
	flight  singleflight.Group
}

// NewSongResolver wires a song resolver over its collaborators.
// cacheSize bounds the shared entity cache.
func NewSongResolver(store storage.SongStore, songCatalog SongCatalog, cacheSize int) *SongResolver {
	return &SongResolver{
		store:   store,
		catalog: songCatalog,
		cache:   cache.NewEntities[*Song](cacheSize),
	}
}

// Resolve returns the song for id or ErrNotFound. A non-positive id is
// the deliberate "no song" shortcut: it yields a fresh empty placeholder
// without touching any tier.
func (r *SongResolver) Resolve(ctx context.Context, id int64) (*Song, error) {
	if id <= 0 {
		return NewSong(), nil
	}
	if song, ok := r.cache.Get(id); ok {
		return song, nil
	}
	value, err, _ := r.flight.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return r.resolveSlow(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Song), nil
}

// resolveSlow runs the store and catalog tiers under singleflight.
func (r *SongResolver) resolveSlow(ctx context.Context, id int64) (*Song, error) {
	// A coalesced caller may have populated the cache already.
	if song, ok := r.cache.Get(id); ok {
		return song, nil
	}

	record, err := r.store.GetSong(ctx, id)
	if err == nil {
		song := songFromRecord(record)
		r.cache.Cache(song.ID, song)
		return song, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("song store lookup %d: %w", id, err)
	}

	if r.catalog == nil {
		return nil, ErrNotFound
	}
	info, err := r.catalog.SongInfo(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrBadResponse) {
			log.Printf("song %d: catalog sent a malformed response: %v", id, err)
		} else {
			log.Printf("song %d: catalog lookup failed: %v", id, err)
		}
		return nil, ErrNotFound
	}

	// Backfill order on a catalog hit: store first (assigning an
	// identifier if needed), then cache, then return.
	song := songFromCatalog(info)
	if err := r.Insert(ctx, song); err != nil {
		return nil, fmt.Errorf("persist catalog song %d: %w", id, err)
	}
	r.cache.Cache(song.ID, song)
	return song, nil
}

// Insert persists song, assigning its identifier from the store when it
// carries the unassigned sentinel. Catalog identifiers are kept as-is.
func (r *SongResolver) Insert(ctx context.Context, song *Song) error {
	id, err := r.store.InsertSong(ctx, song.record())
	if err != nil {
		return fmt.Errorf("insert song: %w", err)
	}
	song.ID = id
	return nil
}

// ResolveOptions gates non-essential data attached during level
// resolution.
type ResolveOptions struct {
	// WithComments fetches the level's comments alongside metadata.
	// When unset the comment source is never consulted.
	WithComments bool
}

// LevelResolver resolves levels through the cache and store tiers.
// There is no external authoritative source for level metadata.
type LevelResolver struct {
	store    storage.LevelStore
	songs    *SongResolver
	users    UserResolver
	comments CommentSource // optional
	cache    *cache.Entities[*Level]
	flight   singleflight.Group

	// commentsMu serializes comment attachment on shared cached
	// instances: one fetch per level, no concurrent assignment.
	commentsMu sync.Mutex

	now func() time.Time
}

// NewLevelResolver wires a level resolver over its collaborators.
func NewLevelResolver(store storage.LevelStore, songs *SongResolver, users UserResolver, comments CommentSource, cacheSize int) *LevelResolver {
	return &LevelResolver{
		store:    store,
		songs:    songs,
		users:    users,
		comments: comments,
		cache:    cache.NewEntities[*Level](cacheSize),
		now:      time.Now,
	}
}

// Resolve returns the level for id or ErrNotFound. A cache hit returns
// the shared instance; a store hit maps the full record, resolves the
// creator and song as nested lookups, and backfills the cache.
func (r *LevelResolver) Resolve(ctx context.Context, id int64, opts ResolveOptions) (*Level, error) {
	level, ok := r.cache.Get(id)
	if !ok {
		value, err, _ := r.flight.Do(strconv.FormatInt(id, 10), func() (any, error) {
			return r.resolveSlow(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		level = value.(*Level)
	}

	// Comments are fetched outside the flight so coalesced callers
	// that did not ask for them are never held up by this fetch.
	if opts.WithComments && r.comments != nil {
		if err := r.attachComments(ctx, id, level); err != nil {
			return nil, err
		}
	}
	return level, nil
}

// attachComments fetches and attaches the level's comments once. Check
// and assign happen under the mutex so two concurrent resolutions
// neither race on the shared instance nor fetch twice.
func (r *LevelResolver) attachComments(ctx context.Context, id int64, level *Level) error {
	r.commentsMu.Lock()
	defer r.commentsMu.Unlock()
	if level.Comments != nil {
		return nil
	}
	comments, err := r.comments.LevelComments(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch comments for level %d: %w", id, err)
	}
	if comments == nil {
		comments = []Comment{}
	}
	level.Comments = comments
	return nil
}

func (r *LevelResolver) resolveSlow(ctx context.Context, id int64) (*Level, error) {
	if level, ok := r.cache.Get(id); ok {
		return level, nil
	}

	record, err := r.store.GetLevel(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("level store lookup %d: %w", id, err)
	}

	level := levelFromRecord(record)
	creator, err := r.users.ResolveUser(ctx, record.UserID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("resolve creator %d: %w", record.UserID, err)
		}
		creator = User{ID: record.UserID}
	}
	level.Creator = creator

	if record.SongID > 0 {
		song, err := r.songs.Resolve(ctx, record.SongID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("resolve song %d: %w", record.SongID, err)
		}
		if err == nil {
			level.Song = song
		}
	}

	r.cache.Cache(level.ID, level)
	return level, nil
}

// Insert persists level once. The identifier assignment is a one-time
// transition: a level that already carries one is rejected. The creation
// timestamp is stamped here.
func (r *LevelResolver) Insert(ctx context.Context, level *Level) error {
	if level.ID != 0 {
		return ErrAlreadyUploaded
	}
	level.Timestamp = r.now().Unix()
	id, err := r.store.InsertLevel(ctx, level.record())
	if err != nil {
		return fmt.Errorf("insert level: %w", err)
	}
	level.ID = id
	return nil
}

// Update applies a sparse set of field changes to level, in memory and
// in the store. No field validation happens here; the caller is trusted
// and a wrapping layer must vet the input. Setting a custom song clears
// the in-game track and vice versa.
func (r *LevelResolver) Update(ctx context.Context, level *Level, update storage.LevelUpdate) error {
	if level.ID == 0 {
		return ErrNotUploaded
	}

	var zero int64
	var song *Song
	switch {
	case update.SongID != nil && *update.SongID > 0:
		update.TrackID = &zero
		resolved, err := r.songs.Resolve(ctx, *update.SongID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("resolve song %d: %w", *update.SongID, err)
		}
		if err == nil {
			song = resolved
		}
	case update.TrackID != nil:
		update.SongID = &zero
	}

	if err := r.store.UpdateLevel(ctx, level.ID, update); err != nil {
		return fmt.Errorf("update level %d: %w", level.ID, err)
	}
	level.applyUpdate(update, song)
	return nil
}

// CacheLevel backfills the shared entity cache with level, typically
// after an upload so the first download is served from memory.
func (r *LevelResolver) CacheLevel(level *Level) {
	if level == nil || level.ID == 0 {
		return
	}
	r.cache.Cache(level.ID, level)
}
