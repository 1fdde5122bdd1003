// Package main is the studybuddy CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/cli"
	"github.com/hyperjump/studybuddy/internal/config"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/studybuddy/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	debug      bool
	output     string
}

// env is what a subcommand gets after the persistent flags are resolved.
type env struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	format     cli.OutputFormat
	debug      bool
}

func (g *globals) resolve() (*env, error) {
	format, err := cli.ParseFormat(g.output)
	if err != nil {
		return nil, err
	}
	cfg, path, err := loadConfig(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || g.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", debug))
	return &env{cfg: cfg, configPath: path, logger: logger, format: format, debug: debug}, nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "studybuddy",
		Short: "Study assistant: document Q&A and study timers",
		Long: `studybuddy answers questions about your uploaded study material, chats about
study topics and arms study timers and alarms from natural-language requests.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&g.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newServeCmd(g),
		newIngestCmd(g),
		newRetrieveCmd(g),
		newChatCmd(g),
		newArmCmd(g),
		newStatusCmd(g),
		newVersionCmd(),
	)
	return root
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
