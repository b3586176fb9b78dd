package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lexa/internal/config"
	"lexa/internal/domain"
	"lexa/internal/logging"
	"lexa/internal/service"
	"lexa/internal/tui"
)

// chatLogFile receives log output while the TUI owns the terminal.
const chatLogFile = "lexa.log"

var (
	configPath string
	verbose    bool
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "lexa",
		Short:         "Lexa: Nigerian legal assistant for Contract Law and Land Law",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runChat,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml, then ~/.config/lexa/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(chatCmd(), askCmd(), indexCmd(), configCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat (default)",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Log.Output == "stderr" || cfg.Log.Output == "stdout" {
		cfg.Log.Output = chatLogFile
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signalContext()
	defer stop()

	fmt.Fprintln(cmd.OutOrStdout(), "Loading knowledge base...")
	lexa, err := service.NewProvider(cfg, service.WithLogger(log)).Get(ctx)
	if err != nil {
		return err
	}

	m := tui.New(ctx, lexa, service.GreetingMessage)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx, stop := signalContext()
			defer stop()

			lexa, err := service.New(ctx, cfg, service.WithLogger(log))
			if err != nil {
				return err
			}
			answer, err := lexa.ProcessQuery(ctx, strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return err
		},
	}
}

func indexCmd() *cobra.Command {
	var rebuild bool
	c := &cobra.Command{
		Use:   "index",
		Short: "Load or build the persisted index and print its manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx, stop := signalContext()
			defer stop()

			idx, err := service.BuildKnowledgeBase(ctx, cfg,
				service.WithLogger(log), service.WithForceRebuild(rebuild))
			if err != nil {
				return err
			}
			mf := idx.Manifest()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "index:      %s\n", cfg.Index.Dir)
			fmt.Fprintf(out, "embedder:   %s (dim %d, %s)\n", mf.Embedder, mf.Dimension, mf.Metric)
			fmt.Fprintf(out, "chunker:    %s\n", mf.Chunker)
			fmt.Fprintf(out, "documents:  %d\n", mf.Documents)
			fmt.Fprintf(out, "chunks:     %d\n", mf.Chunks)
			fmt.Fprintf(out, "checksum:   %s\n", mf.Checksum)
			fmt.Fprintf(out, "created at: %s\n", mf.CreatedAt)
			return nil
		},
	}
	c.Flags().BoolVar(&rebuild, "rebuild", false, "ignore any persisted index and rebuild it")
	return c
}

func configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	c.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without loading datasets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	})
	return c
}
