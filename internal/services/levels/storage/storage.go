// Package storage defines the persistence boundary for level and song
// records. Implementations are thin row stores: no caching, no domain
// logic, explicit not-found signalling.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates a requested record is missing. A miss is a
// routine outcome for the tiered resolvers, never a failure.
var ErrNotFound = errors.New("record not found")

// SongRecord stores one song row.
type SongRecord struct {
	ID         int64
	Title      string
	AuthorID   int64
	AuthorName string
	Size       float64
	AuthorYT   string
	Download   string
}

// LevelRecord stores one level metadata row. Creator and song are held
// by identifier; the domain layer resolves them into entities.
type LevelRecord struct {
	ID             int64
	Name           string
	UserID         int64
	Description    string
	SongID         int64
	ExtraString    string
	Replay         string
	GameVersion    int64
	BinaryVersion  int64
	Timestamp      int64
	Downloads      int64
	Likes          int64
	Stars          int64
	Difficulty     int64
	DemonDiff      int64
	Coins          int64
	CoinsVerified  bool
	RequestedStars int64
	FeaturedID     int64
	RateStatus     int64
	LowDetailMode  bool
	Objects        int64
	Password       int64
	WorkingTime    int64
	LevelVersion   int64
	TrackID        int64
	Length         int64
	Duals          bool
	Unlisted       bool
}

// LevelUpdate describes a sparse set of level field changes. Nil fields
// are left untouched. Values are applied mechanically; validation is the
// caller's responsibility.
type LevelUpdate struct {
	Name           *string
	Description    *string
	LevelVersion   *int64
	Length         *int64
	LowDetailMode  *bool
	Coins          *int64
	CoinsVerified  *bool
	Duals          *bool
	Password       *int64
	Objects        *int64
	SongID         *int64
	TrackID        *int64
	WorkingTime    *int64
	Unlisted       *bool
	GameVersion    *int64
	BinaryVersion  *int64
	Replay         *string
	FeaturedID     *int64
	RateStatus     *int64
	Downloads      *int64
	Likes          *int64
	Stars          *int64
	Difficulty     *int64
	DemonDiff      *int64
	RequestedStars *int64
}

// SongStore persists song rows.
type SongStore interface {
	// GetSong returns the song row for id, or ErrNotFound.
	GetSong(ctx context.Context, id int64) (SongRecord, error)
	// InsertSong inserts record and returns the row identifier. A
	// non-positive record ID requests a store-generated identifier;
	// a positive ID (an external catalog identifier) is written as-is.
	InsertSong(ctx context.Context, record SongRecord) (int64, error)
}

// LevelStore persists level metadata rows.
type LevelStore interface {
	// GetLevel returns the level row for id, or ErrNotFound.
	GetLevel(ctx context.Context, id int64) (LevelRecord, error)
	// InsertLevel inserts record and returns the generated row identifier.
	InsertLevel(ctx context.Context, record LevelRecord) (int64, error)
	// UpdateLevel applies the non-nil fields of update to the row for id.
	UpdateLevel(ctx context.Context, id int64, update LevelUpdate) error
}
