// Command colloquy runs the two-agent dialogue engine, either as an
// HTTP server streaming NDJSON or as a one-shot CLI dialogue.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"colloquy/internal/config"
	"colloquy/internal/llm"
	"colloquy/internal/logging"
	"colloquy/internal/memory"
	"colloquy/internal/orchestrator"
	"colloquy/internal/server"
	"colloquy/internal/store"
)

var (
	configPath string
	debug      bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "colloquy",
	Short: "Two-agent dialogue engine with tiered conversational memory",
	Long: `colloquy drives long-running two-agent dialogues on a fixed topic.
A multi-tier memory (lexical tokens, classified semantic items, micro/
meso/macro summaries, a conflict ledger) keeps the dialogue coherent
across hundreds of turns within a bounded prompt budget.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Best effort; a missing .env is the normal case.
		_ = godotenv.Load()

		var err error
		logger, err = logging.New(debug)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dialogue engine over HTTP with NDJSON streaming",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if debug {
			cfg.Debug = true
		}

		st, err := store.Open(cfg.DatabasePath, logger)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		gen := newGenerator(ctx, cfg)
		srv := server.New(cfg, st, gen, logger)

		if configPath != "" {
			watcher, err := config.Watch(configPath, logger, func(next config.Config) {
				srv.ApplyLimits(next.Limits)
			})
			if err != nil {
				logger.Warn("Config watcher unavailable", zap.Error(err))
			} else {
				defer watcher.Close()
			}
		}

		return srv.Run(ctx)
	},
}

var (
	runTurns        int
	runConversation string
)

var runCmd = &cobra.Command{
	Use:   "run [topic]",
	Short: "Run one dialogue and print its NDJSON events to stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		topic := ""
		if len(args) == 1 {
			topic = args[0]
		}
		if topic == "" && runConversation == "" {
			return errors.New("provide a topic or --conversation")
		}

		st, err := store.Open(cfg.DatabasePath, logger)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		gen := newGenerator(ctx, cfg)
		engine := memory.NewEngine(st, gen, cfg.Limits, logger)
		orch := orchestrator.New(st, engine, gen, cfg.Limits, logger)

		enc := json.NewEncoder(os.Stdout)
		_, err = orch.Run(ctx, orchestrator.Request{
			ConversationID: runConversation,
			Topic:          topic,
			Turns:          runTurns,
		}, func(event any) error {
			return enc.Encode(event)
		})
		return err
	},
}

// newGenerator builds the Gemini client, or returns nil so everything
// runs on the local deterministic path.
func newGenerator(ctx context.Context, cfg config.Config) llm.Generator {
	gen, err := llm.NewGemini(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		if errors.Is(err, llm.ErrNoClient) {
			logger.Info("No API key configured, using local generator")
		} else {
			logger.Warn("Gemini client unavailable, using local generator", zap.Error(err))
		}
		return nil
	}
	logger.Info("Gemini client ready", zap.String("model", cfg.Model))
	return gen
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "colloquy.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	runCmd.Flags().IntVarP(&runTurns, "turns", "t", 0, "turns to generate (clamped to [2,10]; 0 means maximum)")
	runCmd.Flags().StringVar(&runConversation, "conversation", "", "continue an existing conversation id")

	rootCmd.AddCommand(serveCmd, runCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
