// Package setup builds the configured feed source for the binaries.
package setup

import (
	"context"
	"database/sql"
	"fmt"

	"allergystats/internal/feeds"
	"allergystats/internal/feeds/httpsource"
	"allergystats/internal/feeds/pgsource"
	"allergystats/internal/platform/config"
	"allergystats/internal/platform/postgres"
)

// Source is an opened feed source and the resources behind it.
type Source struct {
	feeds.Source
	db *sql.DB
}

// Open builds the source named by cfg.Source.
func Open(cfg config.FeedConfig, pg config.PostgresConfig) (*Source, error) {
	switch cfg.Source {
	case config.FeedSourceHTTP, "":
		return &Source{Source: httpsource.New(cfg.BaseURL, cfg.Timeout)}, nil
	case config.FeedSourcePostgres:
		db, err := postgres.Open(pg)
		if err != nil {
			return nil, err
		}
		if db == nil {
			return nil, fmt.Errorf("postgres feed source needs DATABASE_URL")
		}
		return &Source{Source: pgsource.New(db), db: db}, nil
	default:
		return nil, fmt.Errorf("unknown feed source %q", cfg.Source)
	}
}

// DB is the datalake pool, nil for the HTTP source.
func (s *Source) DB() *sql.DB {
	return s.db
}

// Ping checks the datalake when the source has one.
func (s *Source) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *Source) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
