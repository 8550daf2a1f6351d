package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"weft/internal/config"
	"weft/internal/llm"
	wlog "weft/internal/logger"
	"weft/internal/store"
)

var (
	logger     *zap.Logger
	configPath string
	redisAddr  string
	badgerPath string
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "weft - a personal news reader that scores and summarizes your feeds",
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cmd.Flags().Changed("redis") {
		cfg.Redis.Addr = redisAddr
	}
	return cfg
}

// openStore connects to the store. full opens Badger too; CLI commands run
// in Redis-only mode so they work while the server holds the Badger lock.
func openStore(cfg *config.Config, cmd *cobra.Command, full bool) *store.HybridStore {
	path := ""
	if full {
		path = cfg.BadgerPath()
		if cmd.Flags().Changed("badger") {
			path = badgerPath
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	st, err := store.NewHybridStore(cfg.Redis.Addr, path)
	if err != nil {
		logger.Fatal("Failed to init store", zap.Error(err))
	}
	return st
}

func newLLM(cfg *config.Config) *llm.Client {
	if cfg.LLM.APIKey == "" {
		logger.Warn("No LLM API key configured; scoring and summaries are disabled")
	}
	return llm.NewClient(llm.Config{
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLMTimeout(),
		RetryMax: cfg.LLM.RetryMax,
	}, logger)
}

func main() {
	var err error
	logger, err = wlog.New(os.Getenv("WEFT_ENV"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/weft/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "localhost:6379", "Address of Redis server")
	rootCmd.PersistentFlags().StringVar(&badgerPath, "badger", "", "Path to BadgerDB data directory (default $XDG_DATA_HOME/weft/badger)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(briefingCmd)
	rootCmd.AddCommand(askCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
