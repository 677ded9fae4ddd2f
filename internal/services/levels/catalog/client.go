// Package catalog fetches song metadata from the external authoritative
// music catalog. The catalog speaks a form-POST request carrying a shared
// secret and answers in the game's delimited key-value wire format; error
// outcomes are bare integer bodies rather than structured codes.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/levelvault/internal/services/levels/gdform"
)

// ErrBadResponse indicates the catalog answered with an empty, numeric,
// or key-incomplete body. Callers treat it as not-found; it is never
// retried.
var ErrBadResponse = fmt.Errorf("catalog: malformed response")

const defaultTimeout = 10 * time.Second

// Response keys required for a complete song record.
const (
	keyID         = 1
	keyTitle      = 2
	keyAuthorID   = 3
	keyAuthorName = 4
	keySize       = 5
	keyAuthorYT   = 7
	keyDownload   = 10
)

// Song is one decoded catalog record.
type Song struct {
	ID          int64
	Title       string
	AuthorID    int64
	AuthorName  string
	Size        float64
	AuthorYT    string
	DownloadURL string
}

// Client issues song-info requests against the catalog endpoint.
type Client struct {
	endpoint string
	secret   string
	http     *http.Client
}

// New creates a catalog client for endpoint authenticated by secret.
func New(endpoint, secret string) *Client {
	return &Client{
		endpoint: endpoint,
		secret:   secret,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SongInfo fetches and decodes the catalog record for songID. The raw
// body is returned alongside ErrBadResponse so callers can log it.
func (c *Client) SongInfo(ctx context.Context, songID int64) (Song, error) {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("songID", strconv.FormatInt(songID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Song{}, fmt.Errorf("catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return Song{}, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Song{}, fmt.Errorf("catalog status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Song{}, fmt.Errorf("catalog body: %w", err)
	}
	return decode(string(raw))
}

// decode validates and parses one catalog response body. The failure
// check runs against the whole raw body before parsing: catalog errors
// are bare integers (for example "-2"), never delimited records, so a
// numeric-looking title cannot misfire here.
func decode(body string) (Song, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || isInteger(trimmed) {
		return Song{}, fmt.Errorf("%w: %q", ErrBadResponse, body)
	}

	values, err := gdform.Decode(trimmed, gdform.SongSeparator)
	if err != nil {
		return Song{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	for _, key := range []int{keyID, keyTitle, keyAuthorID, keyAuthorName, keySize, keyAuthorYT, keyDownload} {
		if _, ok := values[key]; !ok {
			return Song{}, fmt.Errorf("%w: missing key %d", ErrBadResponse, key)
		}
	}

	id, err := strconv.ParseInt(values[keyID], 10, 64)
	if err != nil {
		return Song{}, fmt.Errorf("%w: song id %q", ErrBadResponse, values[keyID])
	}
	authorID, err := strconv.ParseInt(values[keyAuthorID], 10, 64)
	if err != nil {
		return Song{}, fmt.Errorf("%w: author id %q", ErrBadResponse, values[keyAuthorID])
	}
	size, err := strconv.ParseFloat(values[keySize], 64)
	if err != nil {
		return Song{}, fmt.Errorf("%w: size %q", ErrBadResponse, values[keySize])
	}

	return Song{
		ID:          id,
		Title:       values[keyTitle],
		AuthorID:    authorID,
		AuthorName:  values[keyAuthorName],
		Size:        size,
		AuthorYT:    values[keyAuthorYT],
		DownloadURL: values[keyDownload],
	}, nil
}

func isInteger(value string) bool {
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}
