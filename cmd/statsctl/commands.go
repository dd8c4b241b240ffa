package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"allergystats/internal/feeds"
	"allergystats/internal/feeds/models"
	"allergystats/internal/feeds/pgsource"
	"allergystats/internal/feeds/setup"
	"allergystats/internal/platform/config"
	"allergystats/internal/platform/logger"
	"allergystats/internal/platform/postgres"
	reportservice "allergystats/internal/report/service"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

type rootOptions struct {
	source      string
	dataServer  string
	databaseURL string
	timeout     time.Duration
	format      string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "statsctl",
		Short:        "Compute population and allergy statistics from the data service",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.source, "source", envOr("FEED_SOURCE", config.FeedSourceHTTP), "feed source: http or postgres")
	flags.StringVar(&opts.dataServer, "data-server", envOr("DATA_SERVER", "http://localhost:3000"), "data service base URL")
	flags.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "datalake Postgres URL")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "bound on reading all feeds")
	flags.StringVarP(&opts.format, "format", "o", formatJSON, "output format: json or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(populationCmd(opts))
	root.AddCommand(allergiesCmd(opts))
	root.AddCommand(seedCmd(opts))
	return root
}

func populationCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "population",
		Short: "Print each city's share of the population with min, max and mean",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := opts.service(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := svc.PopulationStats(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.format, result)
		},
	}
}

func allergiesCmd(opts *rootOptions) *cobra.Command {
	var (
		mode       string
		concurrent bool
	)
	cmd := &cobra.Command{
		Use:   "allergies",
		Short: "Print per-city allergy summaries and global statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var svcOpts []reportservice.Option
			if concurrent {
				svcOpts = append(svcOpts, reportservice.WithConcurrentReducers())
			}
			svc, closeFn, err := opts.service(cmd, svcOpts...)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := svc.AllergyStats(cmd.Context(), mode)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.format, result)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", envOr("STATS_MODE", "legacy"), "aggregation mode: legacy or scoped")
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "run the four reducers in parallel")
	return cmd
}

func seedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [snapshot-file]",
		Short: "Create the datalake schema and load a JSON or YAML snapshot into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			db, err := postgres.Open(config.PostgresConfig{URL: opts.databaseURL, MaxOpenConns: 2, MaxIdleConns: 1})
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}
			defer db.Close()

			ctx := cmd.Context()
			if _, err := db.ExecContext(ctx, pgsource.Schema); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			if err := pgsource.Seed(ctx, db, *snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d cities\n", len(snap.Cities))
			return nil
		},
	}
}

// service builds a report service over an uncached loader.
func (o *rootOptions) service(cmd *cobra.Command, extra ...reportservice.Option) (*reportservice.Service, func(), error) {
	if o.format != formatJSON && o.format != formatYAML {
		return nil, nil, fmt.Errorf("unknown format %q", o.format)
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), o.logLevel)

	source, err := setup.Open(
		config.FeedConfig{Source: strings.ToLower(o.source), BaseURL: o.dataServer, Timeout: o.timeout},
		config.PostgresConfig{URL: o.databaseURL, MaxOpenConns: 4, MaxIdleConns: 4},
	)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = source.Close() }

	loader, err := feeds.NewLoader(source, feeds.WithLogger(log), feeds.WithTimeout(o.timeout))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	svc, err := reportservice.New(loader, append([]reportservice.Option{reportservice.WithLogger(log)}, extra...)...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func readSnapshot(path string) (*models.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap models.Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &snap)
	default:
		err = json.Unmarshal(raw, &snap)
	}
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	for _, c := range snap.Cities {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return &snap, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
