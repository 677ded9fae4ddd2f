package domain

import (
	"strconv"

	"github.com/louisbranch/levelvault/internal/services/levels/catalog"
	"github.com/louisbranch/levelvault/internal/services/levels/gdform"
	"github.com/louisbranch/levelvault/internal/services/levels/storage"
)

// SongIDUnassigned marks a song that has not been persisted yet. The
// sentinel is distinct from zero because the external catalog's
// identifier space starts at 1 and zero already means "no song".
const SongIDUnassigned int64 = -1

// Song is either a custom-uploaded song or a mirrored external catalog
// entry. Songs are never mutated after construction; they are created
// once and fetched thereafter.
type Song struct {
	ID          int64
	Title       string
	AuthorID    int64
	AuthorName  string
	Size        float64 // payload size in megabytes, two decimal places
	AuthorYT    string
	DownloadURL string
}

// NewSong returns the empty, unassigned song placeholder.
func NewSong() *Song {
	return &Song{ID: SongIDUnassigned}
}

// Attached reports whether the song references a real record.
func (s *Song) Attached() bool {
	return s.ID > 0
}

// FullName renders the song as "Author - Title".
func (s *Song) FullName() string {
	return s.AuthorName + " - " + s.Title
}

// Resp serializes the song into the game client's key-value response
// format. The key set mirrors the catalog decode path exactly, so a
// re-decoded response reproduces the same field values.
func (s *Song) Resp() string {
	return gdform.Encode(map[int]string{
		1:  strconv.FormatInt(s.ID, 10),
		2:  s.Title,
		3:  strconv.FormatInt(s.AuthorID, 10),
		4:  s.AuthorName,
		5:  strconv.FormatFloat(s.Size, 'f', -1, 64),
		7:  s.AuthorYT,
		10: s.DownloadURL,
	}, gdform.SongSeparator)
}

func songFromRecord(record storage.SongRecord) *Song {
	return &Song{
		ID:          record.ID,
		Title:       record.Title,
		AuthorID:    record.AuthorID,
		AuthorName:  record.AuthorName,
		Size:        record.Size,
		AuthorYT:    record.AuthorYT,
		DownloadURL: record.Download,
	}
}

func songFromCatalog(info catalog.Song) *Song {
	return &Song{
		ID:          info.ID,
		Title:       info.Title,
		AuthorID:    info.AuthorID,
		AuthorName:  info.AuthorName,
		Size:        info.Size,
		AuthorYT:    info.AuthorYT,
		DownloadURL: info.DownloadURL,
	}
}

func (s *Song) record() storage.SongRecord {
	id := s.ID
	if id == SongIDUnassigned {
		// The sentinel is never written literally; a non-positive
		// record ID asks the store to generate one.
		id = 0
	}
	return storage.SongRecord{
		ID:         id,
		Title:      s.Title,
		AuthorID:   s.AuthorID,
		AuthorName: s.AuthorName,
		Size:       s.Size,
		AuthorYT:   s.AuthorYT,
		Download:   s.DownloadURL,
	}
}
