// Package cli implements the recall CLI commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kindredlabs/recall/internal/embedding"
	"github.com/kindredlabs/recall/internal/index"
	"github.com/kindredlabs/recall/internal/memory"
	"github.com/kindredlabs/recall/internal/store"
)

var (
	dbPath      string
	indexFlag   string
	indexPath   string
	pgDSN       string
	verboseFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Long-term memory for conversational companions",
	Long: "Chunk, embed, and index what a companion hears, then retrieve it\n" +
		"by meaning and recency and assemble it into a token-budgeted context.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $RECALL_DB or ~/.recall/memory.db)")
	RootCmd.PersistentFlags().StringVar(&indexFlag, "index", "", "Vector index backend: memory, sqlite, pgvector (default: $RECALL_INDEX or memory)")
	RootCmd.PersistentFlags().StringVar(&indexPath, "index-path", "", "Path for file-backed index backends (default: $RECALL_INDEX_PATH)")
	RootCmd.PersistentFlags().StringVar(&pgDSN, "pg-dsn", "", "Postgres DSN for the pgvector backend (default: $RECALL_PG_DSN)")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log at debug level")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("RECALL_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".recall", "memory.db")
}

func getIndexConfig() index.Config {
	cfg := index.Config{
		Backend: indexFlag,
		Path:    indexPath,
		DSN:     pgDSN,
	}
	if cfg.Backend == "" {
		cfg.Backend = os.Getenv("RECALL_INDEX")
	}
	if cfg.Path == "" {
		cfg.Path = os.Getenv("RECALL_INDEX_PATH")
	}
	if cfg.Path == "" && (cfg.Backend == "sqlite" || cfg.Backend == "memory") {
		cfg.Path = defaultIndexPath(cfg.Backend)
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("RECALL_PG_DSN")
	}
	return cfg
}

func defaultIndexPath(backend string) string {
	home, _ := os.UserHomeDir()
	name := "index.json"
	if backend == "sqlite" {
		name = "index.db"
	}
	return filepath.Join(home, ".recall", name)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

// openMemory wires the full stack: durable store, vector index with
// fallback, and the configured embedder. The returned closer flushes
// and closes every component.
func openMemory() (*memory.MemoryStore, *store.SQLiteStore, func(), error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}

	idx, status := index.OpenWithFallback(getIndexConfig())
	emb := embedding.NewFromEnv()

	m := memory.New(st, idx, emb, status, memory.WithLogger(newLogger()))
	closer := func() {
		if c, ok := emb.(io.Closer); ok {
			c.Close()
		}
		idx.Close()
		st.Close()
	}
	return m, st, closer, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
