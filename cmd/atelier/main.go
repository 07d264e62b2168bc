// Atelier is a conversational studio assistant for working artists.
//
// It tracks supply inventory, creative projects, and a portfolio, and
// exposes a chat API plus an HTML dashboard. Configuration is loaded
// from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	atelier serve              Start the API server and dashboard
//	atelier init [dir]         Initialize a working directory with defaults
//	atelier ask <message>      Run a single chat turn (for testing)
//	atelier ingest <plan.md>   Import a markdown project plan
//	atelier version            Print version and build information
//	atelier -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/atelier-ai/atelier/internal/agent"
	"github.com/atelier-ai/atelier/internal/api"
	"github.com/atelier-ai/atelier/internal/buildinfo"
	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/events"
	"github.com/atelier-ai/atelier/internal/ingest"
	"github.com/atelier-ai/atelier/internal/inspiration"
	"github.com/atelier-ai/atelier/internal/llm"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/store"
	"github.com/atelier-ai/atelier/internal/tools"
	"github.com/atelier-ai/atelier/internal/web"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the atelier command. OS-level
// dependencies are injected so tests can drive the lifecycle. Arguments
// are parsed by hand: the flag package relies on package-level globals,
// which makes concurrent test invocation impossible, and the surface is
// small enough that manual parsing is clearer than a CLI framework.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: atelier ask <message>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "ingest":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: atelier ingest <plan.md>")
		}
		return runIngest(ctx, stdout, configPath, cmdArgs[0])
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Atelier - Studio Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: atelier [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve         Start the API server and dashboard")
	fmt.Fprintln(w, "  init [dir]    Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask           Run a single chat turn (for testing)")
	fmt.Fprintln(w, "  ingest        Import a markdown project plan")
	fmt.Fprintln(w, "  version       Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  "+strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}

// newLogger builds a slog.Logger for the requested level and format.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// studio bundles everything a chat turn needs. Built once per process.
type studio struct {
	store    *store.Store
	sessions *session.Store
	loop     *agent.Loop
	importer *ingest.Importer
	bus      *events.Bus
}

func (s *studio) close() {
	s.sessions.Close()
	s.store.Close()
}

// buildStudio opens the stores and wires the agent loop from config.
func buildStudio(cfg *config.Config, logger *slog.Logger) (*studio, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "studio.db"))
	if err != nil {
		return nil, fmt.Errorf("open studio store: %w", err)
	}
	sessions, err := session.Open(filepath.Join(cfg.DataDir, "sessions.db"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}

	// Without an endpoint and token, themed mock results keep the
	// inspiration tool contract alive offline.
	var inspo inspiration.Provider
	if cfg.Inspiration.BaseURL != "" && cfg.Inspiration.Token != "" {
		inspo = inspiration.NewHTTPProvider(cfg.Inspiration.BaseURL, cfg.Inspiration.Token, logger)
	} else {
		inspo = inspiration.NewMockProvider()
		logger.Info("inspiration provider: offline mock")
	}

	registry, err := tools.NewRegistry(st, inspo, logger)
	if err != nil {
		sessions.Close()
		st.Close()
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	client := llm.NewOllamaClient(cfg.Models.OllamaURL, logger)

	summarizer := &fallbackSummarizer{
		primary: session.NewLLMSummarizer(func(ctx context.Context, prompt string) (string, error) {
			resp, err := client.Chat(ctx, cfg.Models.Default,
				[]llm.Message{{Role: "user", Content: prompt}}, nil)
			if err != nil {
				return "", err
			}
			return resp.Message.Content, nil
		}),
		backup: &session.SimpleSummarizer{},
		logger: logger,
	}
	compactor := session.NewCompactor(sessions, session.CompactionConfig{
		MaxTokens:    cfg.Session.MaxTokens,
		TriggerRatio: cfg.Session.TriggerRatio,
		KeepRecent:   cfg.Session.KeepRecent,
		MinEntries:   cfg.Session.MinEntries,
	}, summarizer, logger)

	bus := events.New()
	loop := agent.New(client, registry, sessions, compactor, bus, logger, agent.Config{
		Model:             cfg.Models.Default,
		MaxToolIterations: cfg.Agent.MaxToolIterations,
		DecisionTimeout:   cfg.Agent.DecisionTimeout(),
	})

	return &studio{
		store:    st,
		sessions: sessions,
		loop:     loop,
		importer: ingest.NewImporter(st, bus, logger),
		bus:      bus,
	}, nil
}

// fallbackSummarizer tries the reasoning model and falls back to the
// extractive digest when it is unreachable, so compaction never stalls
// on an Ollama outage.
type fallbackSummarizer struct {
	primary session.Summarizer
	backup  session.Summarizer
	logger  *slog.Logger
}

func (f *fallbackSummarizer) Summarize(ctx context.Context, entries []session.Entry) (string, error) {
	digest, err := f.primary.Summarize(ctx, entries)
	if err == nil {
		return digest, nil
	}
	f.logger.Warn("model digest failed, using extractive fallback", "error", err)
	return f.backup.Summarize(ctx, entries)
}

// runServe is the primary operating mode: it loads config, opens the
// stores, wires the agent loop, and serves the API and dashboard until
// SIGINT or SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Atelier", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure with the configured level and format; the Info-level
	// text logger above covers only the startup banner.
	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		level, _ = config.ParseLogLevel(cfg.LogLevel)
	}
	logger = newLogger(stdout, level, cfg.LogFormat)
	logger.Info("config loaded", "path", cfgPath, "port", cfg.Listen.Port, "model", cfg.Models.Default)

	s, err := buildStudio(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	srv := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, s.loop, s.store,
		s.sessions, s.importer, s.bus, cfg.UploadsDir, logger)
	srv.SetUI(web.NewWebServer(s.store, s.sessions, logger))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runAsk runs a single chat turn against the configured studio and
// prints the answer. Useful for smoke tests without starting the server.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	s, err := buildStudio(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	message := strings.Join(args, " ")
	result, err := s.loop.RunTurn(ctx, "cli", message)
	if err != nil {
		var terr *agent.TurnError
		if errors.As(err, &terr) {
			fmt.Fprintln(stdout, terr.Answer)
			return nil
		}
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, result.Answer)
	return nil
}

// runIngest imports a markdown project plan into the studio store.
func runIngest(ctx context.Context, stdout io.Writer, configPath string, filePath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	s, err := buildStudio(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := s.importer.ImportFile(ctx, filePath)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Fprintf(stdout, "Created project %q (%s)\n", result.Project.Title, result.Project.ID)
	fmt.Fprintf(stdout, "  linked supplies:  %d\n", len(result.Linked))
	if len(result.Missing) > 0 {
		fmt.Fprintf(stdout, "  not in inventory: %s\n", strings.Join(result.Missing, ", "))
	}
	return nil
}
