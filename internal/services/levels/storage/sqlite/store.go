// Package sqlite provides a SQLite-backed levels storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/louisbranch/levelvault/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/levelvault/internal/services/levels/storage"
	"github.com/louisbranch/levelvault/internal/services/levels/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists level and song rows in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite levels store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetSong returns the song row for id.
func (s *Store) GetSong(ctx context.Context, id int64) (storage.SongRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SongRecord{}, err
	}
	var record storage.SongRecord
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, title, author_id, author_name, size, author_yt, download
		 FROM songs WHERE id = ? LIMIT 1`,
		id,
	).Scan(
		&record.ID,
		&record.Title,
		&record.AuthorID,
		&record.AuthorName,
		&record.Size,
		&record.AuthorYT,
		&record.Download,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SongRecord{}, storage.ErrNotFound
		}
		return storage.SongRecord{}, fmt.Errorf("get song: %w", err)
	}
	return record, nil
}

// InsertSong inserts record, generating an identifier when the record
// carries none. Catalog songs keep their external identifier.
func (s *Store) InsertSong(ctx context.Context, record storage.SongRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var id any
	if record.ID > 0 {
		id = record.ID
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO songs (id, title, author_id, author_name, size, author_yt, download)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		record.Title,
		record.AuthorID,
		record.AuthorName,
		record.Size,
		record.AuthorYT,
		record.Download,
	)
	if err != nil {
		return 0, fmt.Errorf("insert song: %w", err)
	}
	rowID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("song row id: %w", err)
	}
	return rowID, nil
}

// GetLevel returns the level metadata row for id.
func (s *Store) GetLevel(ctx context.Context, id int64) (storage.LevelRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.LevelRecord{}, err
	}
	var record storage.LevelRecord
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, user_id, description, song_id, extra_str, replay,
		        game_version, binary_version, timestamp, downloads, likes,
		        stars, difficulty, demon_diff, coins, coins_verified,
		        requested_stars, featured_id, rate_status, ldm, objects,
		        password, working_time, level_ver, track_id, length, duals,
		        unlisted
		 FROM levels WHERE id = ? LIMIT 1`,
		id,
	).Scan(
		&record.ID,
		&record.Name,
		&record.UserID,
		&record.Description,
		&record.SongID,
		&record.ExtraString,
		&record.Replay,
		&record.GameVersion,
		&record.BinaryVersion,
		&record.Timestamp,
		&record.Downloads,
		&record.Likes,
		&record.Stars,
		&record.Difficulty,
		&record.DemonDiff,
		&record.Coins,
		&record.CoinsVerified,
		&record.RequestedStars,
		&record.FeaturedID,
		&record.RateStatus,
		&record.LowDetailMode,
		&record.Objects,
		&record.Password,
		&record.WorkingTime,
		&record.LevelVersion,
		&record.TrackID,
		&record.Length,
		&record.Duals,
		&record.Unlisted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.LevelRecord{}, storage.ErrNotFound
		}
		return storage.LevelRecord{}, fmt.Errorf("get level: %w", err)
	}
	return record, nil
}

// InsertLevel inserts record and returns the generated row identifier.
func (s *Store) InsertLevel(ctx context.Context, record storage.LevelRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO levels (
		   name, user_id, description, song_id, extra_str, replay,
		   game_version, binary_version, timestamp, downloads, likes, stars,
		   difficulty, demon_diff, coins, coins_verified, requested_stars,
		   featured_id, rate_status, ldm, objects, password, working_time,
		   level_ver, track_id, length, duals, unlisted
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Name,
		record.UserID,
		record.Description,
		record.SongID,
		record.ExtraString,
		record.Replay,
		record.GameVersion,
		record.BinaryVersion,
		record.Timestamp,
		record.Downloads,
		record.Likes,
		record.Stars,
		record.Difficulty,
		record.DemonDiff,
		record.Coins,
		record.CoinsVerified,
		record.RequestedStars,
		record.FeaturedID,
		record.RateStatus,
		record.LowDetailMode,
		record.Objects,
		record.Password,
		record.WorkingTime,
		record.LevelVersion,
		record.TrackID,
		record.Length,
		record.Duals,
		record.Unlisted,
	)
	if err != nil {
		return 0, fmt.Errorf("insert level: %w", err)
	}
	rowID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("level row id: %w", err)
	}
	return rowID, nil
}

// UpdateLevel applies the non-nil fields of update to the row for id.
func (s *Store) UpdateLevel(ctx context.Context, id int64, update storage.LevelUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	assignments := make([]string, 0, 8)
	args := make([]any, 0, 8)
	set := func(column string, value any) {
		assignments = append(assignments, column+" = ?")
		args = append(args, value)
	}

	if update.Name != nil {
		set("name", *update.Name)
	}
	if update.Description != nil {
		set("description", *update.Description)
	}
	if update.LevelVersion != nil {
		set("level_ver", *update.LevelVersion)
	}
	if update.Length != nil {
		set("length", *update.Length)
	}
	if update.LowDetailMode != nil {
		set("ldm", *update.LowDetailMode)
	}
	if update.Coins != nil {
		set("coins", *update.Coins)
	}
	if update.CoinsVerified != nil {
		set("coins_verified", *update.CoinsVerified)
	}
	if update.Duals != nil {
		set("duals", *update.Duals)
	}
	if update.Password != nil {
		set("password", *update.Password)
	}
	if update.Objects != nil {
		set("objects", *update.Objects)
	}
	if update.SongID != nil {
		set("song_id", *update.SongID)
	}
	if update.TrackID != nil {
		set("track_id", *update.TrackID)
	}
	if update.WorkingTime != nil {
		set("working_time", *update.WorkingTime)
	}
	if update.Unlisted != nil {
		set("unlisted", *update.Unlisted)
	}
	if update.GameVersion != nil {
		set("game_version", *update.GameVersion)
	}
	if update.BinaryVersion != nil {
		set("binary_version", *update.BinaryVersion)
	}
	if update.Replay != nil {
		set("replay", *update.Replay)
	}
	if update.FeaturedID != nil {
		set("featured_id", *update.FeaturedID)
	}
	if update.RateStatus != nil {
		set("rate_status", *update.RateStatus)
	}
	if update.Downloads != nil {
		set("downloads", *update.Downloads)
	}
	if update.Likes != nil {
		set("likes", *update.Likes)
	}
	if update.Stars != nil {
		set("stars", *update.Stars)
	}
	if update.Difficulty != nil {
		set("difficulty", *update.Difficulty)
	}
	if update.DemonDiff != nil {
		set("demon_diff", *update.DemonDiff)
	}
	if update.RequestedStars != nil {
		set("requested_stars", *update.RequestedStars)
	}

	if len(assignments) == 0 {
		return nil
	}
	args = append(args, id)
	result, err := s.sqlDB.ExecContext(
		ctx,
		"UPDATE levels SET "+strings.Join(assignments, ", ")+" WHERE id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update level rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
