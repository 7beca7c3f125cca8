package main

import (
	"fmt"
	"os"

	"github.com/alphabot-ai/threadfeed/internal/config"
	"github.com/alphabot-ai/threadfeed/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "threadfeed",
	Short: "Threaded discussions with incremental comment feeds",
	Long: `threadfeed serves discussions over HTTP and WebSocket and can follow
a discussion from the terminal, paging its comments into a live thread.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		log = logging.New(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./threadfeed.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
