// Package server wires the levels runtime: relational storage, the
// payload file store, the external song catalog client and both
// resolvers, plus the process lifecycle around them.
package server

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/levelvault/internal/platform/config"
	platformerrors "github.com/louisbranch/levelvault/internal/platform/errors"
	"github.com/louisbranch/levelvault/internal/services/levels/catalog"
	"github.com/louisbranch/levelvault/internal/services/levels/domain"
	"github.com/louisbranch/levelvault/internal/services/levels/payload"
	levelsqlite "github.com/louisbranch/levelvault/internal/services/levels/storage/sqlite"
)

// Config controls the levels runtime. Blank paths fall back to the
// data directory defaults; non-positive cache sizes fall back to the
// cache package default.
type Config struct {
	DBPath         string `env:"LEVELVAULT_DB_PATH"`
	LevelDir       string `env:"LEVELVAULT_LEVEL_DIR"`
	CatalogURL     string `env:"LEVELVAULT_CATALOG_URL"`
	CatalogSecret  string `env:"LEVELVAULT_CATALOG_SECRET"`
	SongCacheSize  int    `env:"LEVELVAULT_SONG_CACHE_SIZE"`
	LevelCacheSize int    `env:"LEVELVAULT_LEVEL_CACHE_SIZE"`
}

// ConfigFromEnv loads runtime configuration from the environment.
func ConfigFromEnv() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = filepath.Join("data", "levels.db")
	}
	if strings.TrimSpace(c.LevelDir) == "" {
		c.LevelDir = filepath.Join("data", "levels")
	}
}

// Server hosts the levels runtime and its storage lifecycle.
type Server struct {
	store    *levelsqlite.Store
	payloads *payload.Store

	// Songs and Levels are the resolver entry points for callers that
	// embed this runtime.
	Songs  *domain.SongResolver
	Levels *domain.LevelResolver
}

// New creates a configured levels runtime.
func New(cfg Config) (*Server, error) {
	cfg.applyDefaults()

	store, err := openLevelStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	payloads, err := payload.Open(cfg.LevelDir)
	if err != nil {
		_ = store.Close()
		return nil, platformerrors.Wrap(platformerrors.CodePayloadStoreUnavailable,
			fmt.Sprintf("open payload dir %s", cfg.LevelDir), err)
	}

	var songCatalog domain.SongCatalog
	if endpoint := strings.TrimSpace(cfg.CatalogURL); endpoint != "" {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			_ = store.Close()
			return nil, platformerrors.Wrap(platformerrors.CodeConfigInvalid,
				fmt.Sprintf("catalog url %q", endpoint), err)
		}
		songCatalog = catalog.New(endpoint, cfg.CatalogSecret)
	}

	songs := domain.NewSongResolver(store, songCatalog, cfg.SongCacheSize)
	levels := domain.NewLevelResolver(store, songs, creatorDirectory{}, nil, cfg.LevelCacheSize)

	return &Server{
		store:    store,
		payloads: payloads,
		Songs:    songs,
		Levels:   levels,
	}, nil
}

// Payloads returns the level payload store.
func (s *Server) Payloads() *payload.Store {
	return s.payloads
}

// Run creates a levels runtime and serves it until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve blocks until context cancellation, then releases resources.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("levels runtime ready")
	<-ctx.Done()
	return nil
}

// Close releases the runtime's storage resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close levels store: %v", err)
		}
	}
}

func openLevelStore(path string) (*levelsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, platformerrors.Wrap(platformerrors.CodeStorageUnavailable,
				fmt.Sprintf("create storage dir %s", dir), err)
		}
	}
	store, err := levelsqlite.Open(path)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.CodeStorageUnavailable,
			fmt.Sprintf("open levels sqlite store %s", path), err)
	}
	return store, nil
}

// creatorDirectory stands in for the account service. Creators resolve
// by identifier only until an account directory is wired.
type creatorDirectory struct{}

func (creatorDirectory) ResolveUser(ctx context.Context, id int64) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}
