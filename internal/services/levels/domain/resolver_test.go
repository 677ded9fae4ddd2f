package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/levelvault/internal/services/levels/catalog"
	"github.com/louisbranch/levelvault/internal/services/levels/storage"
)

type fakeSongStore struct {
	mu          sync.Mutex
	records     map[int64]storage.SongRecord
	nextID      int64
	getCalls    int
	insertCalls int
	getDelay    time.Duration
	getErr      error
	insertErr   error
}

func newFakeSongStore() *fakeSongStore {
	return &fakeSongStore{records: map[int64]storage.SongRecord{}, nextID: 1000}
}

func (f *fakeSongStore) GetSong(_ context.Context, id int64) (storage.SongRecord, error) {
	f.mu.Lock()
	f.getCalls++
	forced := f.getErr
	record, ok := f.records[id]
	delay := f.getDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if forced != nil {
		return storage.SongRecord{}, forced
	}
	if !ok {
		return storage.SongRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeSongStore) InsertSong(_ context.Context, record storage.SongRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	if record.ID <= 0 {
		f.nextID++
		record.ID = f.nextID
	}
	f.records[record.ID] = record
	return record.ID, nil
}

type fakeCatalog struct {
	mu    sync.Mutex
	songs map[int64]catalog.Song
	calls int
	err   error
}

func (f *fakeCatalog) SongInfo(_ context.Context, songID int64) (catalog.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return catalog.Song{}, f.err
	}
	song, ok := f.songs[songID]
	if !ok {
		return catalog.Song{}, catalog.ErrBadResponse
	}
	return song, nil
}

type fakeLevelStore struct {
	mu          sync.Mutex
	records     map[int64]storage.LevelRecord
	nextID      int64
	getCalls    int
	insertCalls int
	updates     []storage.LevelUpdate
	getErr      error
}

func newFakeLevelStore() *fakeLevelStore {
	return &fakeLevelStore{records: map[int64]storage.LevelRecord{}}
}

func (f *fakeLevelStore) GetLevel(_ context.Context, id int64) (storage.LevelRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return storage.LevelRecord{}, f.getErr
	}
	record, ok := f.records[id]
	if !ok {
		return storage.LevelRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeLevelStore) InsertLevel(_ context.Context, record storage.LevelRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	f.nextID++
	record.ID = f.nextID
	f.records[record.ID] = record
	return record.ID, nil
}

func (f *fakeLevelStore) UpdateLevel(_ context.Context, id int64, update storage.LevelUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return storage.ErrNotFound
	}
	f.updates = append(f.updates, update)
	return nil
}

type fakeUsers struct {
	users map[int64]User
	calls int
}

func (f *fakeUsers) ResolveUser(_ context.Context, id int64) (User, error) {
	f.calls++
	user, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

type fakeComments struct {
	mu       sync.Mutex
	comments map[int64][]Comment
	calls    int
}

func (f *fakeComments) LevelComments(_ context.Context, levelID int64) ([]Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.comments[levelID], nil
}

func (f *fakeComments) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testSongRecord(id int64) storage.SongRecord {
	return storage.SongRecord{
		ID:         id,
		Title:      "Forsaken Neon",
		AuthorID:   542,
		AuthorName: "Xtrullor",
		Size:       8.04,
		AuthorYT:   "UCqGuU",
		Download:   "https://audio.example/song.mp3",
	}
}

func TestResolveSongEmptyShortcut(t *testing.T) {
	t.Parallel()

	store := newFakeSongStore()
	cat := &fakeCatalog{}
	resolver := NewSongResolver(store, cat, 0)

	for _, id := range []int64{0, SongIDUnassigned} {
		song, err := resolver.Resolve(context.Background(), id)
		if err != nil {
			t.Fatalf("resolve %d: %v", id, err)
		}
		if song.Attached() {
			t.Fatalf("resolve %d returned an attached song", id)
		}
	}
	if store.getCalls != 0 || cat.calls != 0 {
		t.Fatalf("empty shortcut touched tiers: store=%d catalog=%d", store.getCalls, cat.calls)
	}
}

func TestResolveSongStoreHitBackfillsCache(t *testing.T) {
	t.Parallel()

	store := newFakeSongStore()
	store.records[911107] = testSongRecord(911107)
	resolver := NewSongResolver(store, &fakeCatalog{}, 0)

	first, err := resolver.Resolve(context.Background(), 911107)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if first.Title != "Forsaken Neon" {
		t.Fatalf("unexpected song %+v", first)
	}

	// A second resolve must be served entirely from cache.
	store.mu.Lock()
	store.getErr = errors.New("store must not be consulted twice")
	store.mu.Unlock()

	second, err := resolver.Resolve(context.Background(), 911107)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second != first {
		t.Fatal("cache tier must preserve instance identity")
	}
}

func TestResolveSongCatalogHitPersistsThenCaches(t *testing.T) {
	t.Parallel()

	store := newFakeSongStore()
	cat := &fakeCatalog{songs: map[int64]catalog.Song{
		911107: {
			ID:          911107,
			Title:       "Forsaken Neon",
			AuthorID:    542,
			AuthorName:  "Xtrullor",
			Size:        8.04,
			AuthorYT:    "UCqGuU",
			DownloadURL: "https://audio.example/song.mp3",
		},
	}}
	resolver := NewSongResolver(store, cat, 0)

	song, err := resolver.Resolve(context.Background(), 911107)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if song.ID != 911107 || song.Title != "Forsaken Neon" {
		t.Fatalf("unexpected song %+v", song)
	}
	if store.insertCalls != 1 {
		t.Fatalf("store inserts %d, want exactly 1", store.insertCalls)
	}
	if _, ok := store.records[911107]; !ok {
		t.Fatal("catalog hit was not persisted")
	}

	// Both faster tiers are now warm: neither store nor catalog may be
	// consulted again.
	store.mu.Lock()
	store.getErr = errors.New("store must not be consulted twice")
	store.mu.Unlock()
	cat.mu.Lock()
	cat.err = errors.New("catalog must not be consulted twice")
	cat.mu.Unlock()

	again, err := resolver.Resolve(context.Background(), 911107)
	if err != nil {
		t.Fatalf("cached resolve: %v", err)
	}
	if again != song {
		t.Fatal("cache tier must preserve instance identity")
	}
	if cat.calls != 1 {
		t.Fatalf("catalog calls %d, want 1", cat.calls)
	}
}

func TestResolveSongStoreInsertFailureDoesNotCache(t *testing.T) {
	t.Parallel()

	store := newFakeSongStore()
	store.insertErr = errors.New("disk full")
	cat := &fakeCatalog{songs: map[int64]catalog.Song{5: {ID: 5, Title: "T", AuthorID: 1, AuthorName: "A", Size: 1, AuthorYT: "yt", DownloadURL: "http://x"}}}
	resolver := NewSongResolver(store, cat, 0)

	if _, err := resolver.Resolve(context.Background(), 5); err == nil {
		t.Fatal("expected persist failure to surface")
	}

	// Nothing was cached, so the next resolve walks the chain again.
	store.mu.Lock()
	store.insertErr = nil
	store.mu.Unlock()
	if _, err := resolver.Resolve(context.Background(), 5); err != nil {
		t.Fatalf("retry resolve: %v", err)
	}
	if cat.calls != 2 {
		t.Fatalf("catalog calls %d, want 2", cat.calls)
	}
}

func TestResolveSongMalformedCatalogResponseIsNotFound(t *testing.T) {
	t.Parallel()

	store := newFakeSongStore()
	cat := &fakeCatalog{}
	resolver := NewSongResolver(store, cat, 0)

	_, err := resolver.Resolve(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if store.insertCalls != 0 {
		t.Fatal("malformed catalog response must not persist anything")
	}
}

func TestResolveSongWithoutCatalogTier(t *testing.T) {
	t.Parallel()

	resolver := NewSongResolver(newFakeSongStore(), nil, 0)

	_, err := resolver.Resolve(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestResolveSongCoalescesConcurrentMisses(t *testing.T) {
	t.Parallel()

	store := newFakeSongStore()
	store.records[911107] = testSongRecord(911107)
	store.getDelay = 20 * time.Millisecond
	resolver := NewSongResolver(store, &fakeCatalog{}, 0)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = resolver.Resolve(context.Background(), 911107)
		}(i)
	}
	wg.Wait()

	for n, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", n, err)
		}
	}
	store.mu.Lock()
	calls := store.getCalls
	store.mu.Unlock()
	if calls != 1 {
		t.Fatalf("store consulted %d times for coalesced misses, want 1", calls)
	}
}

func newLevelResolverUnderTest(store *fakeLevelStore, songs *fakeSongStore, cat SongCatalog, users *fakeUsers, comments *fakeComments) *LevelResolver {
	songResolver := NewSongResolver(songs, cat, 0)
	var commentSource CommentSource
	if comments != nil {
		commentSource = comments
	}
	return NewLevelResolver(store, songResolver, users, commentSource, 0)
}

func testLevelRecord(id int64) storage.LevelRecord {
	return storage.LevelRecord{
		ID:            id,
		Name:          "Cosmic Runway",
		UserID:        7,
		Description:   "fast paced wave",
		SongID:        911107,
		GameVersion:   22,
		BinaryVersion: 35,
		Timestamp:     1_700_000_000,
		Stars:         10,
		Difficulty:    int64(DifficultyInsane),
		FeaturedID:    9,
		RateStatus:    int64(RateStatusRated | RateStatusEpic),
		Length:        int64(LengthXL),
	}
}

func TestResolveLevelStoreHitResolvesNestedEntities(t *testing.T) {
	t.Parallel()

	levelStore := newFakeLevelStore()
	levelStore.records[1] = testLevelRecord(1)
	songStore := newFakeSongStore()
	songStore.records[911107] = testSongRecord(911107)
	users := &fakeUsers{users: map[int64]User{7: {ID: 7, Name: "zan"}}}

	resolver := newLevelResolverUnderTest(levelStore, songStore, nil, users, nil)
	level, err := resolver.Resolve(context.Background(), 1, ResolveOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if level.Creator.Name != "zan" {
		t.Fatalf("creator %+v, want resolved user", level.Creator)
	}
	if level.Song == nil || level.Song.Title != "Forsaken Neon" {
		t.Fatalf("song %+v, want nested resolution", level.Song)
	}
	if !level.Demon() || !level.Epic() || !level.Featured() {
		t.Fatal("derived ratings lost in row mapping")
	}
}

func TestResolveLevelBackfillsCache(t *testing.T) {
	t.Parallel()

	levelStore := newFakeLevelStore()
	levelStore.records[1] = testLevelRecord(1)
	users := &fakeUsers{}

	resolver := newLevelResolverUnderTest(levelStore, newFakeSongStore(), nil, users, nil)
	first, err := resolver.Resolve(context.Background(), 1, ResolveOptions{})
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	levelStore.mu.Lock()
	levelStore.getErr = errors.New("store must not be consulted twice")
	levelStore.mu.Unlock()

	second, err := resolver.Resolve(context.Background(), 1, ResolveOptions{})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second != first {
		t.Fatal("cache tier must preserve instance identity")
	}
}

func TestResolveLevelMissingCreatorKeepsIdentifier(t *testing.T) {
	t.Parallel()

	levelStore := newFakeLevelStore()
	record := testLevelRecord(1)
	record.SongID = 0
	record.TrackID = 14
	levelStore.records[1] = record

	resolver := newLevelResolverUnderTest(levelStore, newFakeSongStore(), nil, &fakeUsers{}, nil)
	level, err := resolver.Resolve(context.Background(), 1, ResolveOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if level.Creator.ID != 7 || level.Creator.Name != "" {
		t.Fatalf("creator %+v, want bare identifier", level.Creator)
	}
	if level.Song != nil || level.TrackID != 14 {
		t.Fatalf("track reference lost: %+v", level)
	}
}

func TestResolveLevelNotFound(t *testing.T) {
	t.Parallel()

	resolver := newLevelResolverUnderTest(newFakeLevelStore(), newFakeSongStore(), nil, &fakeUsers{}, nil)

	_, err := resolver.Resolve(context.Background(), 404, ResolveOptions{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestResolveLevelCommentsAreGated(t *testing.T) {
	t.Parallel()

	levelStore := newFakeLevelStore()
	record := testLevelRecord(1)
	record.SongID = 0
	levelStore.records[1] = record
	comments := &fakeComments{comments: map[int64][]Comment{
		1: {{ID: 11, UserID: 3, Content: "gg"}},
	}}

	resolver := newLevelResolverUnderTest(levelStore, newFakeSongStore(), nil, &fakeUsers{}, comments)

	level, err := resolver.Resolve(context.Background(), 1, ResolveOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if comments.calls != 0 {
		t.Fatal("comment source consulted without the flag")
	}
	if level.Comments != nil {
		t.Fatal("comments attached without the flag")
	}

	level, err = resolver.Resolve(context.Background(), 1, ResolveOptions{WithComments: true})
	if err != nil {
		t.Fatalf("resolve with comments: %v", err)
	}
	if comments.calls != 1 || len(level.Comments) != 1 {
		t.Fatalf("comments calls=%d attached=%d, want 1/1", comments.calls, len(level.Comments))
	}
}

func TestResolveLevelConcurrentCommentAttachFetchesOnce(t *testing.T) {
	t.Parallel()

	levelStore := newFakeLevelStore()
	record := testLevelRecord(1)
	record.SongID = 0
	levelStore.records[1] = record
	comments := &fakeComments{comments: map[int64][]Comment{
		1: {{ID: 11, UserID: 3, Content: "gg"}},
	}}

	resolver := newLevelResolverUnderTest(levelStore, newFakeSongStore(), nil, &fakeUsers{}, comments)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			level, err := resolver.Resolve(context.Background(), 1, ResolveOptions{WithComments: true})
			if err != nil {
				errs <- err
				return
			}
			if len(level.Comments) != 1 {
				errs <- fmt.Errorf("attached %d comments, want 1", len(level.Comments))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent resolve: %v", err)
	}

	if got := comments.callCount(); got != 1 {
		t.Fatalf("comment source consulted %d times, want 1", got)
	}
}

func TestInsertLevelIsCreateOnce(t *testing.T) {
	t.Parallel()

	levelStore := newFakeLevelStore()
	resolver := newLevelResolverUnderTest(levelStore, newFakeSongStore(), nil, &fakeUsers{}, nil)
	resolver.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	level := NewLevelFromSubmit(7, "Cosmic Runway", "fast paced wave", 1)
	if err := resolver.Insert(context.Background(), level); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if level.ID == 0 {
		t.Fatal("insert must assign the generated identifier")
	}
	if level.Timestamp != 1_700_000_000 {
		t.Fatalf("timestamp %d, want stamped at insert", level.Timestamp)
	}

	err := resolver.Insert(context.Background(), level)
	if !errors.Is(err, ErrAlreadyUploaded) {
		t.Fatalf("second insert: got %v, want ErrAlreadyUploaded", err)
	}
	if levelStore.insertCalls != 1 {
		t.Fatalf("store inserts %d, want no second write", levelStore.insertCalls)
	}
}

func TestUpdateLevelRequiresUpload(t *testing.T) {
	t.Parallel()

	resolver := newLevelResolverUnderTest(newFakeLevelStore(), newFakeSongStore(), nil, &fakeUsers{}, nil)

	err := resolver.Update(context.Background(), NewLevel(), storage.LevelUpdate{})
	if !errors.Is(err, ErrNotUploaded) {
		t.Fatalf("got %v, want ErrNotUploaded", err)
	}
}

func TestUpdateLevelEnforcesSongTrackExclusivity(t *testing.T) {
	t.Parallel()

	levelStore := newFakeLevelStore()
	songStore := newFakeSongStore()
	songStore.records[911107] = testSongRecord(911107)
	resolver := newLevelResolverUnderTest(levelStore, songStore, nil, &fakeUsers{}, nil)

	level := NewLevelFromSubmit(7, "Cosmic Runway", "", 1)
	level.SetTrack(14)
	if err := resolver.Insert(context.Background(), level); err != nil {
		t.Fatalf("insert: %v", err)
	}

	songID := int64(911107)
	if err := resolver.Update(context.Background(), level, storage.LevelUpdate{SongID: &songID}); err != nil {
		t.Fatalf("update song: %v", err)
	}
	if level.TrackID != 0 || level.Song == nil || level.SongID != 911107 {
		t.Fatalf("song update left %+v", level)
	}

	levelStore.mu.Lock()
	lastUpdate := levelStore.updates[len(levelStore.updates)-1]
	levelStore.mu.Unlock()
	if lastUpdate.TrackID == nil || *lastUpdate.TrackID != 0 {
		t.Fatal("stored update must clear the track column")
	}

	trackID := int64(3)
	if err := resolver.Update(context.Background(), level, storage.LevelUpdate{TrackID: &trackID}); err != nil {
		t.Fatalf("update track: %v", err)
	}
	if level.Song != nil || level.SongID != 0 || level.TrackID != 3 {
		t.Fatalf("track update left %+v", level)
	}
}

func TestUpdateLevelZeroSongIDClearsCustomSong(t *testing.T) {
	t.Parallel()

	levelStore := newFakeLevelStore()
	songStore := newFakeSongStore()
	songStore.records[911107] = testSongRecord(911107)
	resolver := newLevelResolverUnderTest(levelStore, songStore, nil, &fakeUsers{}, nil)

	level := NewLevelFromSubmit(7, "Cosmic Runway", "", 1)
	if err := resolver.Insert(context.Background(), level); err != nil {
		t.Fatalf("insert: %v", err)
	}
	songID := int64(911107)
	if err := resolver.Update(context.Background(), level, storage.LevelUpdate{SongID: &songID}); err != nil {
		t.Fatalf("attach song: %v", err)
	}

	var noSong int64
	if err := resolver.Update(context.Background(), level, storage.LevelUpdate{SongID: &noSong}); err != nil {
		t.Fatalf("clear song: %v", err)
	}

	levelStore.mu.Lock()
	lastUpdate := levelStore.updates[len(levelStore.updates)-1]
	levelStore.mu.Unlock()
	if lastUpdate.SongID == nil || *lastUpdate.SongID != 0 {
		t.Fatal("stored update must zero the song column")
	}
	if level.Song != nil || level.SongID != 0 {
		t.Fatalf("entity diverged from store after clear: %+v", level)
	}
	if level.TrackID != 0 {
		t.Fatalf("clearing the song must not invent a track, got %d", level.TrackID)
	}
}

func TestUpdateLevelAppliesSparseFields(t *testing.T) {
	t.Parallel()

	levelStore := newFakeLevelStore()
	resolver := newLevelResolverUnderTest(levelStore, newFakeSongStore(), nil, &fakeUsers{}, nil)

	level := NewLevelFromSubmit(7, "draft", "first pass", 1)
	if err := resolver.Insert(context.Background(), level); err != nil {
		t.Fatalf("insert: %v", err)
	}

	name := "final"
	stars := int64(8)
	unlisted := true
	if err := resolver.Update(context.Background(), level, storage.LevelUpdate{
		Name:     &name,
		Stars:    &stars,
		Unlisted: &unlisted,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if level.Name != "final" || level.Stars != 8 || !level.Unlisted {
		t.Fatalf("update not applied: %+v", level)
	}
	if level.Description != "first pass" {
		t.Fatalf("untouched field changed: %q", level.Description)
	}
}
