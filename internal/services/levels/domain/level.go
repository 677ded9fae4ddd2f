package domain

import (
	"context"
	"strings"

	"github.com/louisbranch/levelvault/internal/services/levels/storage"
)

// Difficulty is the non-demon difficulty classification of a level.
type Difficulty int

// Difficulty classifications.
const (
	DifficultyNA Difficulty = iota
	DifficultyEasy
	DifficultyNormal
	DifficultyHard
	DifficultyHarder
	DifficultyInsane
)

// Length classifies a level's duration.
type Length int

// Length classifications.
const (
	LengthTiny Length = iota
	LengthShort
	LengthMedium
	LengthLong
	LengthXL
)

// RateStatus is a bitmask of rating statuses. Membership is tested via
// mask, not equality; a level can hold several statuses at once.
type RateStatus int

// Rating status flags.
const (
	RateStatusRated RateStatus = 1 << iota
	RateStatusEpic
	RateStatusLegendary
	RateStatusMythic
)

// PayloadCacheLimit is the largest encoded payload size, in bytes, held
// in a level's instance-local payload cache. Larger payloads are always
// re-read from storage.
const PayloadCacheLimit = 5000

// Default client versions stamped on new levels.
const (
	defaultGameVersion   = 22
	defaultBinaryVersion = 35
)

// defaultExtraString is the batch-node render hint for a level with no
// recorded object distribution: 55 zeroed counters.
var defaultExtraString = strings.TrimSuffix(strings.Repeat("0_", 55), "_")

// Level is a level's metadata plus access to its geometry payload. The
// payload lives and dies in the payload store, addressed by level
// identifier; metadata and payload lifecycles are independent.
type Level struct {
	ID          int64
	Name        string
	Creator     User
	Description string

	// SongID and TrackID are mutually exclusive: exactly one of the
	// custom song reference and the in-game track is authoritative,
	// with custom songs taking priority. Song holds the resolved
	// custom song entity when one is attached.
	SongID  int64
	Song    *Song
	TrackID int64

	Comments []Comment

	LevelVersion  int
	Length        Length
	Dual          bool
	Unlisted      bool
	ExtraString   string
	Replay        string
	GameVersion   int
	BinaryVersion int
	Timestamp     int64

	Likes          int64
	Downloads      int64
	Stars          int
	Difficulty     Difficulty
	DemonDiff      int
	Coins          int
	CoinsVerified  bool
	RequestedStars int
	FeatureID      int64
	RateStatus     RateStatus
	LowDetailMode  bool
	ObjectCount    int64
	Password       int
	WorkingTime    int64

	// payloadCache holds small payloads per instance. Two
	// independently resolved instances of the same level cache
	// independently; this is not the shared entity cache.
	payloadCache string
}

// NewLevel returns an empty level with client defaults applied.
func NewLevel() *Level {
	return &Level{
		ExtraString:   defaultExtraString,
		GameVersion:   defaultGameVersion,
		BinaryVersion: defaultBinaryVersion,
	}
}

// NewLevelFromSubmit builds an upload-in-progress level from the submit
// fields. The payload is written separately through the payload store.
func NewLevelFromSubmit(creatorID int64, name, description string, version int) *Level {
	level := NewLevel()
	level.Name = name
	level.Creator = User{ID: creatorID}
	level.Description = description
	level.LevelVersion = version
	return level
}

// Demon reports whether the level carries the demon rating. Unrated
// levels cannot be demons, so the star count alone decides.
func (l *Level) Demon() bool {
	return l.Stars == 10
}

// Auto reports whether the level carries the auto rating.
func (l *Level) Auto() bool {
	return l.Stars == 1
}

// Featured reports whether the level is featured. Features are not a
// boolean flag; they are totally ordered by feature identifier.
func (l *Level) Featured() bool {
	return l.FeatureID > 0
}

// HasStatus reports whether the level holds the given rating status.
func (l *Level) HasStatus(status RateStatus) bool {
	return l.RateStatus&status != 0
}

// Epic reports whether the level is rated epic.
func (l *Level) Epic() bool {
	return l.HasStatus(RateStatusEpic)
}

// SetSong attaches a custom song, clearing any in-game track reference.
func (l *Level) SetSong(song *Song) {
	l.Song = song
	l.SongID = 0
	if song != nil {
		l.SongID = song.ID
	}
	l.TrackID = 0
}

// SetTrack references an in-game track, clearing any custom song.
func (l *Level) SetTrack(trackID int64) {
	l.TrackID = trackID
	l.Song = nil
	l.SongID = 0
}

// LoadPayload returns the level's geometry payload. The instance cache
// is consulted first; otherwise the payload store is read and payloads
// at or under PayloadCacheLimit bytes are cached for later loads. A
// missing payload is a valid empty result (ok=false), not an error.
func (l *Level) LoadPayload(ctx context.Context, store PayloadStore) (contents string, ok bool, err error) {
	if l.payloadCache != "" {
		return l.payloadCache, true, nil
	}
	exists, err := store.Exists(ctx, l.ID)
	if err != nil {
		return "", false, err
	}
	if !exists {
		return "", false, nil
	}
	contents, err = store.Read(ctx, l.ID)
	if err != nil {
		return "", false, err
	}
	if len(contents) <= PayloadCacheLimit {
		l.payloadCache = contents
	}
	return contents, true, nil
}

// WritePayload overwrites the level's payload in the payload store. The
// instance cache is updated (or cleared, for large payloads) regardless
// of the write outcome so it can never hold a half-replaced payload.
func (l *Level) WritePayload(ctx context.Context, store PayloadStore, contents string) error {
	if l.ID == 0 {
		return ErrNotUploaded
	}
	if len(contents) <= PayloadCacheLimit {
		l.payloadCache = contents
	} else {
		l.payloadCache = ""
	}
	return store.Write(ctx, l.ID, contents)
}

func levelFromRecord(record storage.LevelRecord) *Level {
	return &Level{
		ID:             record.ID,
		Name:           record.Name,
		Creator:        User{ID: record.UserID},
		Description:    record.Description,
		SongID:         record.SongID,
		TrackID:        record.TrackID,
		LevelVersion:   int(record.LevelVersion),
		Length:         Length(record.Length),
		Dual:           record.Duals,
		Unlisted:       record.Unlisted,
		ExtraString:    record.ExtraString,
		Replay:         record.Replay,
		GameVersion:    int(record.GameVersion),
		BinaryVersion:  int(record.BinaryVersion),
		Timestamp:      record.Timestamp,
		Likes:          record.Likes,
		Downloads:      record.Downloads,
		Stars:          int(record.Stars),
		Difficulty:     Difficulty(record.Difficulty),
		DemonDiff:      int(record.DemonDiff),
		Coins:          int(record.Coins),
		CoinsVerified:  record.CoinsVerified,
		RequestedStars: int(record.RequestedStars),
		FeatureID:      record.FeaturedID,
		RateStatus:     RateStatus(record.RateStatus),
		LowDetailMode:  record.LowDetailMode,
		ObjectCount:    record.Objects,
		Password:       int(record.Password),
		WorkingTime:    record.WorkingTime,
	}
}

func (l *Level) record() storage.LevelRecord {
	return storage.LevelRecord{
		ID:             l.ID,
		Name:           l.Name,
		UserID:         l.Creator.ID,
		Description:    l.Description,
		SongID:         l.SongID,
		ExtraString:    l.ExtraString,
		Replay:         l.Replay,
		GameVersion:    int64(l.GameVersion),
		BinaryVersion:  int64(l.BinaryVersion),
		Timestamp:      l.Timestamp,
		Downloads:      l.Downloads,
		Likes:          l.Likes,
		Stars:          int64(l.Stars),
		Difficulty:     int64(l.Difficulty),
		DemonDiff:      int64(l.DemonDiff),
		Coins:          int64(l.Coins),
		CoinsVerified:  l.CoinsVerified,
		RequestedStars: int64(l.RequestedStars),
		FeaturedID:     l.FeatureID,
		RateStatus:     int64(l.RateStatus),
		LowDetailMode:  l.LowDetailMode,
		Objects:        l.ObjectCount,
		Password:       int64(l.Password),
		WorkingTime:    l.WorkingTime,
		LevelVersion:   int64(l.LevelVersion),
		TrackID:        l.TrackID,
		Length:         int64(l.Length),
		Duals:          l.Dual,
		Unlisted:       l.Unlisted,
	}
}

// applyUpdate folds the non-nil fields of update into the entity. Song
// and track changes go through the setters so mutual exclusivity holds.
func (l *Level) applyUpdate(update storage.LevelUpdate, song *Song) {
	switch {
	case update.SongID != nil && *update.SongID > 0:
		if song != nil {
			l.SetSong(song)
		} else {
			l.Song = nil
			l.SongID = *update.SongID
			l.TrackID = 0
		}
	case update.TrackID != nil:
		l.SetTrack(*update.TrackID)
	case update.SongID != nil:
		// A present non-positive song id is an explicit clear of the
		// custom song without picking a track. The store writes the
		// zero column either way, so the entity must match it.
		l.Song = nil
		l.SongID = 0
	}

	if update.Name != nil {
		l.Name = *update.Name
	}
	if update.Description != nil {
		l.Description = *update.Description
	}
	if update.LevelVersion != nil {
		l.LevelVersion = int(*update.LevelVersion)
	}
	if update.Length != nil {
		l.Length = Length(*update.Length)
	}
	if update.LowDetailMode != nil {
		l.LowDetailMode = *update.LowDetailMode
	}
	if update.Coins != nil {
		l.Coins = int(*update.Coins)
	}
	if update.CoinsVerified != nil {
		l.CoinsVerified = *update.CoinsVerified
	}
	if update.Duals != nil {
		l.Dual = *update.Duals
	}
	if update.Password != nil {
		l.Password = int(*update.Password)
	}
	if update.Objects != nil {
		l.ObjectCount = *update.Objects
	}
	if update.WorkingTime != nil {
		l.WorkingTime = *update.WorkingTime
	}
	if update.Unlisted != nil {
		l.Unlisted = *update.Unlisted
	}
	if update.GameVersion != nil {
		l.GameVersion = int(*update.GameVersion)
	}
	if update.BinaryVersion != nil {
		l.BinaryVersion = int(*update.BinaryVersion)
	}
	if update.Replay != nil {
		l.Replay = *update.Replay
	}
	if update.FeaturedID != nil {
		l.FeatureID = *update.FeaturedID
	}
	if update.RateStatus != nil {
		l.RateStatus = RateStatus(*update.RateStatus)
	}
	if update.Downloads != nil {
		l.Downloads = *update.Downloads
	}
	if update.Likes != nil {
		l.Likes = *update.Likes
	}
	if update.Stars != nil {
		l.Stars = int(*update.Stars)
	}
	if update.Difficulty != nil {
		l.Difficulty = Difficulty(*update.Difficulty)
	}
	if update.DemonDiff != nil {
		l.DemonDiff = int(*update.DemonDiff)
	}
	if update.RequestedStars != nil {
		l.RequestedStars = int(*update.RequestedStars)
	}
}
