package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/rustacademy/academy/internal/app"
	"github.com/rustacademy/academy/internal/backup"
	"github.com/rustacademy/academy/internal/duckdb"
	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/httpserver"
	"github.com/rustacademy/academy/internal/ingest"
	"github.com/rustacademy/academy/internal/journal"
	"github.com/rustacademy/academy/internal/model"
	"github.com/rustacademy/academy/internal/otlpexport"
	"github.com/rustacademy/academy/internal/runtime"
	"github.com/rustacademy/academy/internal/socketrpc"
)

// runServer starts the application loop with its hosts and event sources.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	loopOpts := []runtime.Option{
		runtime.WithInboxSize(cfg.InboxSize),
		runtime.WithSink(runtime.LogSink{Verbose: cfg.Verbose}),
	}

	// Transition analytics store
	var store *duckdb.Store
	var stats model.StatsQuerier
	var retention *duckdb.RetentionSweeper
	if cfg.DBEnabled {
		var err error
		store, err = duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		defer store.Close()
		stats = store

		insertBuffer := duckdb.NewInsertBuffer(store, duckdb.InsertBufferConfig{
			BatchSize:      cfg.InsertBatchSize,
			FlushInterval:  cfg.InsertFlushInterval,
			FlushQueueSize: cfg.InsertFlushQueue,
		})
		defer func() {
			insertBuffer.Stop()
			s := insertBuffer.Stats()
			log.Printf("server: duckdb written=%d dropped=%d failed=%d", s.Written, s.Dropped, s.Failed)
		}()
		loopOpts = append(loopOpts, runtime.WithSink(insertBuffer))

		retention = duckdb.NewRetentionSweeper(store, duckdb.RetentionConfig{
			RetentionDays: cfg.RetentionDays,
		})
	}

	var backupManager *backup.Manager
	if store != nil {
		var err error
		backupManager, err = backup.NewManager(store, backup.Config{
			Enabled:  cfg.BackupEnabled,
			Interval: cfg.BackupInterval,
			LocalDir: cfg.BackupLocalDir,
			KeepLast: cfg.BackupKeepLast,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize backups: %w", err)
		}
	}

	// OTLP export of transitions and key presses
	var exporter *otlpexport.Exporter
	if strings.TrimSpace(cfg.OTLPEndpoint) != "" {
		var err error
		exporter, err = otlpexport.Dial(otlpexport.Config{
			Endpoint:    cfg.OTLPEndpoint,
			ServiceName: cfg.OTLPServiceName,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize OTLP exporter: %w", err)
		}
		defer exporter.Close()
		loopOpts = append(loopOpts, runtime.WithSink(exporter))
	}

	loop := runtime.New(app.Env{Random: app.SystemRandom{}}, loopOpts...)
	dispatcher := event.NewDispatcher(loop.Waiter())

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("runtime loop: %w", err)
		}
		return nil
	})

	// Replay envelopes accepted before a crash, then journal new ones.
	if cfg.JournalEnabled {
		eventJournal, err := journal.Open(cfg.JournalPath)
		if err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("failed to open event journal: %w", err)
		}
		defer eventJournal.Close()
		if err := replayUncommittedJournal(gctx, eventJournal, dispatcher); err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("failed to replay event journal: %w", err)
		}
		dispatcher.SetJournal(eventJournal)
	}

	if retention != nil {
		g.Go(func() error { return retention.Run(gctx) })
	}
	if backupManager != nil {
		g.Go(func() error { return backupManager.Run(gctx) })
	}
	if exporter != nil {
		g.Go(func() error { return exporter.Run(gctx) })
	}

	// Browser host
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, loop, dispatcher, stats)
		if err := apiServer.Start(); err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Socket RPC for the terminal client
	sockServer := socketrpc.NewServer(cfg.SocketPath, loop, dispatcher, stats)
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	// Event sources
	sources := buildSources(gctx, buildInputPlugins(InputPluginConfig{
		ClockEnabled: cfg.ClockEnabled,
		TickInterval: cfg.TickInterval,
		ClockFormat:  cfg.ClockFormat,
		TCPEnabled:   cfg.TCPEnabled,
		TCPAddr:      cfg.TCPAddr,
		StdinEnabled: cfg.StdinEnabled,
	}), log.Printf)

	mux := NewSourceMultiplexer(gctx, sources, cfg.MuxBufferSize)
	mux.Start()

	processor, err := ingest.NewEnvelopeProcessor(cfg.IngestMode, dispatcher, "mux")
	if err != nil {
		cancel()
		mux.Stop()
		_ = g.Wait()
		return err
	}

	printStartupBanner(cfg, mux.SourceNames(), processor.Name())

	if mux.HasSources() {
		g.Go(func() error {
			for env := range mux.Lines() {
				if res := processor.ProcessEnvelope(gctx, env); res != nil && errors.Is(res.Err, event.ErrInvalidPayload) {
					log.Printf("ingest: %v", res.Err)
				}
			}
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	// Wait for either signal or a failed component.
	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	mux.Stop()

	d := dispatcher.Stats()
	log.Printf("server: stopped (accepted=%d dropped=%d forwarded=%v sink_dropped=%d)",
		d.Accepted, d.Dropped, mux.Forwarded(), loop.DroppedRecords())
	if exporter != nil {
		s := exporter.Stats()
		log.Printf("server: otlp exported=%d dropped=%d failed=%d", s.Exported, s.Dropped, s.Failed)
	}

	// If we reach here, graceful shutdown succeeded within the deadline.
	signal.Stop(sigCh)
	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "academy")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "academy.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

// replayUncommittedJournal feeds journaled but uncommitted envelopes back
// into the loop and commits them once applied.
func replayUncommittedJournal(ctx context.Context, j *journal.Journal, d *event.Dispatcher) error {
	if j == nil {
		return nil
	}

	replayed := 0
	if err := j.Replay(func(seq uint64, e event.Envelope) error {
		if err := d.Replay(ctx, e); err != nil {
			return err
		}
		replayed++
		return j.Commit(seq)
	}); err != nil {
		return err
	}

	if replayed > 0 {
		log.Printf("event journal: replayed %d uncommitted events", replayed)
	}
	return nil
}

func printStartupBanner(cfg appConfig, sources []string, processorName string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	status := func(label string, on bool, value string) string {
		if on {
			return fmt.Sprintf("    %s  %-14s %s", check, label, cyan.Render(value))
		}
		return fmt.Sprintf("    %s  %-14s %s", dot, label, dim.Render("disabled"))
	}

	logo := cyan.Bold(true).Render(`
    ╔═╗╔═╗╔═╗╔╦╗╔═╗╔╦╗╦ ╦
    ╠═╣║  ╠═╣ ║║║╣ ║║║╚╦╝
    ╩ ╩╚═╝╩ ╩═╩╝╚═╝╩ ╩ ╩ `)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Hosts"), "")
	lines = append(lines, status("Browser", cfg.APIEnabled, "http://"+cfg.APIAddr))
	lines = append(lines, status("Unix Socket", true, shortenPath(cfg.SocketPath)))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Event Sources"), "")
	lines = append(lines, status("Clock", cfg.ClockEnabled, cfg.TickInterval.String()+" "+cfg.ClockFormat))
	lines = append(lines, status("TCP", cfg.TCPEnabled, cfg.TCPAddr))
	lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Active", dim.Render(strings.Join(sources, ", "))))
	lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Processor", dim.Render(processorName)))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Sinks"), "")
	lines = append(lines, status("Analytics", cfg.DBEnabled, shortenPath(cfg.DBPath)))
	lines = append(lines, status("Snapshots", cfg.BackupEnabled, shortenPath(cfg.BackupLocalDir)))
	lines = append(lines, status("Journal", cfg.JournalEnabled, shortenPath(cfg.JournalPath)))
	lines = append(lines, status("OTLP", cfg.OTLPEndpoint != "", cfg.OTLPEndpoint))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", dot, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
