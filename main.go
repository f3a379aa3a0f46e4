package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
	port       int
	apiPort    int

	cfg    *Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "masterblog",
	Short: "Masterblog front-end: list, add and delete posts of a posts API and like them locally",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}
		if cmd.Flags().Changed("api-port") {
			cfg.Server.APIPort = apiPort
		}

		logger, err = NewLogger(cfg.Logging, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the front-end page",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStore(cfg.Storage)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		return NewServer(cfg, store, logger).Start(cmd.Context())
	},
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the in-memory posts API under /api/posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return NewServer(cfg, NewMemoryStore(), logger).StartAPI(cmd.Context())
	},
}

var likesCmd = &cobra.Command{
	Use:   "likes",
	Short: "Inspect the locally stored like counters",
}

var likesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every stored like counter",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStore(cfg.Storage)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		counters, err := NewLikeCounters(store).All(cmd.Context())
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(counters))
		for id := range counters {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, likesText(counters[id]))
		}
		return nil
	},
}

var likesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete the counters of posts the stored endpoint no longer lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStore(cfg.Storage)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		server := NewServer(cfg, store, logger)
		controller, _, err := server.NewController(cmd.Context())
		if err != nil {
			return err
		}
		pruned, err := controller.PruneLikes(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d counters\n", len(pruned))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "masterblog.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().IntVar(&port, "port", 9001, "tcp port to listen")
	rootCmd.PersistentFlags().IntVar(&apiPort, "api-port", 0, "also serve the posts API on this port")

	likesCmd.AddCommand(likesListCmd, likesPruneCmd)
	rootCmd.AddCommand(serveCmd, apiCmd, likesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
