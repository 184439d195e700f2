// Package main provides the MindGraph CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentmind/mindgraph/pkg/config"
	"github.com/agentmind/mindgraph/pkg/embed"
	"github.com/agentmind/mindgraph/pkg/mindgraph"
	"github.com/agentmind/mindgraph/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var configPath string

func main() {
	// Optional .env file for provider credentials.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "mindgraph",
		Short: "MindGraph - Semantic Memory Graph for AI Agents",
		Long: `MindGraph is an embedded semantic memory store. Each memory is a node
with an embedding vector; typed directed edges connect related memories.

Features:
  • Cosine similarity search over memory contents
  • Auto-suggested connections on insert
  • Bidirectional graph navigation
  • Access tracking for every search and navigation`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mindgraph.yaml", "Config file path")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("MindGraph v%s (%s)\n", version, commit)
		},
	})

	insertCmd := &cobra.Command{
		Use:   "insert [content]",
		Short: "Store a new memory",
		Long:  "Store a new memory node and print any suggested connections to similar memories.",
		Args:  cobra.ExactArgs(1),
		RunE:  runInsert,
	}
	insertCmd.Flags().String("id", "", "Explicit node id (default: generated)")
	insertCmd.Flags().StringSlice("tags", nil, "Tags for the memory")
	insertCmd.Flags().String("priority", "normal", "Priority: low, normal, high")
	rootCmd.AddCommand(insertCmd)

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by semantic similarity",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}
	searchCmd.Flags().StringSlice("tags", nil, "Only return memories carrying at least one of these tags")
	searchCmd.Flags().Int("top-k", 0, "Maximum results (default: from config)")
	rootCmd.AddCommand(searchCmd)

	connectCmd := &cobra.Command{
		Use:   "connect [source-id] [target-id] [relationship]",
		Short: "Create a typed edge between two memories",
		Args:  cobra.ExactArgs(3),
		RunE:  runConnect,
	}
	rootCmd.AddCommand(connectCmd)

	navigateCmd := &cobra.Command{
		Use:   "navigate [node-id]",
		Short: "Show a memory with all its connections",
		Args:  cobra.ExactArgs(1),
		RunE:  runNavigate,
	}
	rootCmd.AddCommand(navigateCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show graph statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Dump all nodes and edges as JSON",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB wires config, logger, embedder and store for a subcommand.
func openDB(cmd *cobra.Command) (*mindgraph.DB, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	embedder, err := embed.NewEmbedder(&embed.Config{
		Provider:   cfg.Embedding.Provider,
		APIURL:     cfg.Embedding.APIURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create embedder: %w", err)
	}

	dbCfg := mindgraph.DefaultConfig()
	dbCfg.Embedder = embedder
	dbCfg.AutoConnectThreshold = cfg.Graph.AutoConnectThreshold
	dbCfg.SearchDefaultTopK = cfg.Graph.SearchTopK
	dbCfg.SuggestionLimit = cfg.Graph.SuggestionLimit
	dbCfg.EmbedTimeout = cfg.Embedding.Timeout
	dbCfg.Logger = logger

	db, err := mindgraph.Open(cfg.DataDir, dbCfg)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	return db, logger, nil
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.ZapLevel())
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level
	// Keep stdout clean for command output.
	zapCfg.OutputPaths = []string{"stderr"}
	return zapCfg.Build()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runInsert(cmd *cobra.Command, args []string) error {
	db, logger, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	id, _ := cmd.Flags().GetString("id")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	priorityStr, _ := cmd.Flags().GetString("priority")
	priority, err := storage.ParsePriority(priorityStr)
	if err != nil {
		return err
	}

	res, err := db.Insert(context.Background(), mindgraph.InsertRequest{
		ID:       id,
		Content:  args[0],
		Tags:     tags,
		Priority: priority,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runSearch(cmd *cobra.Command, args []string) error {
	db, logger, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	tags, _ := cmd.Flags().GetStringSlice("tags")
	topK, _ := cmd.Flags().GetInt("top-k")

	results, err := db.Search(context.Background(), args[0], tags, topK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "no matching memories")
		return printJSON([]mindgraph.SearchResult{})
	}
	return printJSON(results)
}

func runConnect(cmd *cobra.Command, args []string) error {
	db, logger, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	relationship := strings.TrimSpace(args[2])
	edge, err := db.Connect(context.Background(), args[0], args[1], relationship)
	if err != nil {
		return err
	}
	return printJSON(edge)
}

func runNavigate(cmd *cobra.Command, args []string) error {
	db, logger, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	nav, err := db.Navigate(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(nav)
}

func runStats(cmd *cobra.Command, args []string) error {
	db, logger, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	stats, err := db.Stats(context.Background())
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runExport(cmd *cobra.Command, args []string) error {
	db, logger, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	dump, err := db.Export(context.Background())
	if err != nil {
		return err
	}
	return printJSON(dump)
}
