package domain

import (
	"context"

	"github.com/louisbranch/levelvault/internal/services/levels/catalog"
)

// User is the boundary view of a level creator. Account state lives in
// the user service; only identity and display name cross into this core.
type User struct {
	ID   int64
	Name string
}

// Comment is the boundary view of one level comment. Comment storage is
// owned elsewhere; resolution here only attaches fetched comments to a
// level on request.
type Comment struct {
	ID        int64
	UserID    int64
	Content   string
	Likes     int64
	Timestamp int64
}

// UserResolver resolves level creators by identifier. A missing user
// resolves to ErrNotFound.
type UserResolver interface {
	ResolveUser(ctx context.Context, id int64) (User, error)
}

// CommentSource fetches the comments attached to a level.
type CommentSource interface {
	LevelComments(ctx context.Context, levelID int64) ([]Comment, error)
}

// SongCatalog is the external authoritative source for song metadata.
type SongCatalog interface {
	SongInfo(ctx context.Context, songID int64) (catalog.Song, error)
}

// PayloadStore holds level geometry payloads keyed by level identifier.
type PayloadStore interface {
	Exists(ctx context.Context, levelID int64) (bool, error)
	Read(ctx context.Context, levelID int64) (string, error)
	Write(ctx context.Context, levelID int64, contents string) error
}
