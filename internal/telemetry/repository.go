package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/perfwatch/internal/errors"
	"codeberg.org/mutker/perfwatch/internal/logger"
	"codeberg.org/mutker/perfwatch/internal/sample"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	logger.Debug().Str("path", cfg.DBPath).Msg("Initializing telemetry repository")

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &sqliteRepository{db: db}, nil
}

func (r *sqliteRepository) Store(ctx context.Context, s sample.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	args := make([]any, 0, 21)
	args = append(args, s.Timestamp.UnixNano())
	for _, d := range sample.Metrics() {
		args = append(args, nullable(d.Get(s.System)))
	}
	args = append(args, leaderName(s.TopByCPU), leaderName(s.TopByMemory), leaderName(s.TopByIO))

	if _, err := r.db.ExecContext(ctx, insertSampleSQL, args...); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func nullable(r sample.Reading) any {
	if !r.Available {
		return nil
	}

	return r.Value
}

func leaderName(ranks []sample.ProcessRank) any {
	if len(ranks) == 0 {
		return nil
	}

	return ranks[0].Name
}
