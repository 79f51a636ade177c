// Command careloop runs the CareLoop caregiving assistant backend: the
// conversational agent, the reminder scheduler, and the HTTP API the
// kiosk device and caregiver dashboard talk to.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/careloop/careloop/internal/agent"
	"github.com/careloop/careloop/internal/api"
	"github.com/careloop/careloop/internal/buildinfo"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/contacts"
	"github.com/careloop/careloop/internal/events"
	"github.com/careloop/careloop/internal/kiosk"
	"github.com/careloop/careloop/internal/llm"
	"github.com/careloop/careloop/internal/messaging"
	"github.com/careloop/careloop/internal/phrase"
	"github.com/careloop/careloop/internal/scheduler"
	"github.com/careloop/careloop/internal/search"
	"github.com/careloop/careloop/internal/speech"
	"github.com/careloop/careloop/internal/store"
	"github.com/careloop/careloop/internal/tools"
)

var configPath string

func main() {
	// A .env next to the binary is the easiest way to hand API keys to
	// the yaml ${VAR} expansions during development. Missing is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "careloop",
		Short:         "CareLoop - caregiving assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, agent and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	checkDueCmd := &cobra.Command{
		Use:   "check-due",
		Short: "Run one due-reminder scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckDue(cmd.Context())
		},
	}

	initDataCmd := &cobra.Command{
		Use:   "init-data",
		Short: "Seed the data directory with a sample patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitData(cmd.OutOrStdout())
		},
	}

	importContactsCmd := &cobra.Command{
		Use:   "import-contacts <file.vcf>",
		Short: "Import caregivers from a vCard file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			primary, _ := cmd.Flags().GetString("primary")
			return runImportContacts(cmd.OutOrStdout(), args[0], primary)
		},
	}
	importContactsCmd.Flags().String("primary", "", "name of the contact to mark as primary caregiver")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := buildinfo.Info()
			fmt.Fprintf(cmd.OutOrStdout(), "careloop %s (%s, built %s, %s)\n",
				info["version"], info["git_commit"], info["build_time"], info["go_version"])
		},
	}

	rootCmd.AddCommand(serveCmd, checkDueCmd, initDataCmd, importContactsCmd, versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves and loads the config file. When no file exists
// anywhere on the search path, defaults are used so a bare `careloop
// serve` still starts in a degraded (unconfigured LLM) mode.
func loadConfig() (*config.Config, error) {
	path, err := config.FindConfig(configPath)
	if err != nil {
		if configPath != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		parsed, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})
	return slog.New(handler), nil
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("opening data store: %w", err)
	}
	bus := events.New()

	llmClient := llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	if !cfg.Gemini.Configured() {
		logger.Warn("no Gemini API key configured, conversation will be degraded")
	}

	searchMgr := buildSearchManager(cfg, logger)

	var messenger *messaging.Client
	if cfg.WhatsApp.Configured() {
		messenger = messaging.New(cfg.WhatsApp.BaseURL, cfg.WhatsApp.Token, logger)
	}

	registry := tools.NewRegistry(st, messenger, searchMgr, bus, logger)
	ag := agent.New(llmClient, registry, st, bus, cfg.Agent.MaxToolIterations, logger)

	phraser := phrase.New(llmClient, logger)
	sched := scheduler.New(st, phraser, bus, cfg.Scheduler.Interval(), logger)
	routines := scheduler.NewRoutines(ag, st, bus, logger)

	apiCfg := api.Config{
		Listen:    fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port),
		Agent:     ag,
		Store:     st,
		Scheduler: sched,
		Routines:  routines,
		Bus:       bus,
		KioskURL:  cfg.Kiosk.BaseURL,
		Logger:    logger,
	}
	if cfg.Speech.OpenAIAPIKey != "" {
		apiCfg.Transcriber = speech.NewTranscriber(cfg.Speech.OpenAIAPIKey, logger)
	}
	if cfg.Speech.ElevenLabsAPIKey != "" {
		apiCfg.Synthesizer = speech.NewSynthesizer(
			cfg.Speech.ElevenLabsAPIKey, cfg.Speech.VoiceID, cfg.Speech.ModelID, logger)
	}
	if messenger != nil {
		apiCfg.Messenger = messenger
	}
	srv := api.NewServer(apiCfg)

	var notifier *kiosk.Notifier
	if cfg.Kiosk.MQTT.Enabled {
		notifier = kiosk.New(cfg.Kiosk.MQTT, bus, logger)
		if err := notifier.Start(ctx); err != nil {
			logger.Error("kiosk MQTT notifier failed to start", "error", err)
			notifier = nil
		}
	}

	go sched.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	logger.Info("careloop started",
		"listen", apiCfg.Listen,
		"version", buildinfo.Version,
		"data_dir", st.Dir())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if notifier != nil {
		if err := notifier.Stop(shutdownCtx); err != nil {
			logger.Debug("kiosk notifier stop", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("careloop stopped")
	return nil
}

func buildSearchManager(cfg *config.Config, logger *slog.Logger) *search.Manager {
	mgr := search.NewManager(cfg.Search.Primary)
	mgr.Register(search.NewDuckDuckGo())
	if cfg.Search.Brave.APIKey != "" {
		mgr.Register(search.NewBrave(cfg.Search.Brave.APIKey))
	}
	if !mgr.Configured() {
		logger.Warn("primary search provider unavailable, falling back", "primary", cfg.Search.Primary)
	}
	return mgr
}

func runCheckDue(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("opening data store: %w", err)
	}

	llmClient := llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	phraser := phrase.New(llmClient, logger)
	sched := scheduler.New(st, phraser, events.New(), cfg.Scheduler.Interval(), logger)

	due, err := sched.CheckDueItems(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d item(s) due\n", due)
	return nil
}

func runImportContacts(out io.Writer, path, primary string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	imported, err := contacts.ImportVCards(f, primary)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("opening data store: %w", err)
	}

	var names []string
	err = st.WithLock(func() error {
		existing := st.Caregivers()
		for _, cg := range imported {
			if cg.Primary {
				for i := range existing {
					existing[i].Primary = false
				}
			}
			existing = append(existing, cg)
			names = append(names, cg.Name)
		}
		return st.SaveCaregivers(existing)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d caregiver(s): %s\n", len(imported), strings.Join(names, ", "))
	return nil
}
