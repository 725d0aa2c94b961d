// Package cli implements the memgate CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/memgate/memgate/internal/config"
	"github.com/memgate/memgate/internal/curation"
	"github.com/memgate/memgate/internal/embedding"
	"github.com/memgate/memgate/internal/gateway"
	"github.com/memgate/memgate/internal/model"
	"github.com/memgate/memgate/internal/rank"
	"github.com/memgate/memgate/internal/semantic"
	"github.com/memgate/memgate/internal/store"
)

var (
	cfgPath string
	dbPath  string
	verbose bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memgate",
	Short: "Human-curated memory gateway for AI agents",
	Long:  "A memory gateway: durable facts, episodes, procedures, and intentions,\nsearchable by agents under per-client scopes and curated through an approval inbox.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (YAML)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMGATE_DB or ~/.memgate/memgate.db)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func logger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func openStore() (*store.SQLiteStore, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

// openService builds the full gateway stack: store, optional semantic index,
// ranking engine, curation workflow.
func openService() (*gateway.Service, *store.SQLiteStore, *config.Config, error) {
	s, cfg, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger()

	opts := []rank.Option{
		rank.WithWeights(cfg.Weights),
		rank.WithHalfLife(cfg.HalfLife),
		rank.WithSimilarityTimeout(cfg.Similarity.Timeout),
		rank.WithLogger(log),
	}

	embedder, err := embedding.New(cfg.Similarity.Provider, cfg.Similarity.BaseURL, cfg.Similarity.Model)
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}
	if embedder == nil {
		embedder = embedding.NewFromEnv()
	}
	if embedder != nil {
		index, err := semantic.NewIndex(embedder, cfg.Similarity.CacheSize, log)
		if err != nil {
			s.Close()
			return nil, nil, nil, err
		}
		opts = append(opts, rank.WithSimilarity(index))
	}

	engine, err := rank.New(opts...)
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}

	workflow := curation.New(s, s, s.NewID, s, log)
	svc := gateway.New(s, s, s, engine, workflow, log)
	return svc, s, cfg, nil
}

// resolveClient stands in for transport authentication: the caller names a
// registered client id and the store resolves it.
func resolveClient(ctx context.Context, s *store.SQLiteStore, id string) (*model.Client, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: --client is required", model.ErrInvalidArgument)
	}
	return s.GetClient(ctx, id)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
