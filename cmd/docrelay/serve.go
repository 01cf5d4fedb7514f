package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/docrelay-dev/docrelay/internal/config"
	"github.com/docrelay-dev/docrelay/pkg/contents"
	"github.com/docrelay-dev/docrelay/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		configDir string
		address   string
		debug     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the collaboration gateway",
		Long: `Start the collaboration gateway.

Configuration is read from docrelay.json in the config directory
(defaults to the current directory); a missing file uses defaults.

Examples:
  docrelay serve
  docrelay serve --config /etc/docrelay
  docrelay serve --address :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configDir, address, debug)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "c", ".", "Directory containing docrelay.json")
	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(configDir, address string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if address != "" {
		cfg.Address = address
	}

	cm, err := buildContents(cfg)
	if err != nil {
		return err
	}

	fileIDPath := cfg.FileIDPath
	if fileIDPath == "" && cfg.Storage.Backend == "disk" {
		fileIDPath = filepath.Join(cfg.ContentDir, ".docrelay-ids.json")
	}

	gw, err := server.New(&server.Config{
		Address:      cfg.Address,
		AuthToken:    cfg.AuthToken,
		CleanupDelay: cfg.CleanupDelay(),
		SaveDelay:    cfg.SaveDelay(),
		PollInterval: cfg.PollInterval(),
		LogRoot:      cfg.ContentDir,
		FileIDPath:   fileIDPath,
	}, cm)
	if err != nil {
		return err
	}

	return gw.Run()
}

// buildContents constructs the durable content backend named by the
// config.
func buildContents(cfg *config.Config) (contents.Manager, error) {
	switch cfg.Storage.Backend {
	case "disk":
		return contents.NewDiskManager(cfg.ContentDir)

	case "s3":
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Storage.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Storage.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return contents.NewS3Manager(client, cfg.Storage.Bucket, cfg.Storage.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
