package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pagebot-ai/pagebot/internal/channels"
	"github.com/pagebot-ai/pagebot/internal/channels/messenger"
	"github.com/pagebot-ai/pagebot/internal/channels/telegram"
	"github.com/pagebot-ai/pagebot/internal/config"
	"github.com/pagebot-ai/pagebot/internal/gateway"
	"github.com/pagebot-ai/pagebot/internal/knowledge"
	"github.com/pagebot-ai/pagebot/internal/logbuf"
	"github.com/pagebot-ai/pagebot/internal/providers"
	"github.com/pagebot-ai/pagebot/internal/relay"
	"github.com/pagebot-ai/pagebot/internal/store"
	"github.com/pagebot-ai/pagebot/internal/store/file"
	"github.com/pagebot-ai/pagebot/internal/store/pg"
	"github.com/pagebot-ai/pagebot/internal/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	ring := logbuf.NewRing(logbuf.DefaultCapacity)
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	text := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(logbuf.NewHandler(text, ring)))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("config.load", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("tracing.setup", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	backend, credentials := openBackend(cfg)
	defer backend.Close()

	ks := knowledge.NewStore(backend)
	loadCtx, loadCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ks.Load(loadCtx); err != nil {
		slog.Error("knowledge.load", "error", err)
		loadCancel()
		os.Exit(1)
	}
	loadCancel()
	slog.Info("knowledge.loaded", "entries", ks.Len())

	// File backend: pick up external edits to the document (dashboard or
	// manual) without a restart.
	if fs, ok := backend.(*file.Store); ok && cfg.Store.WatchFile {
		if err := fs.Watch(ks.Replace); err != nil {
			slog.Warn("knowledge.watch_unavailable", "error", err)
		}
	}

	// Env tokens win; the file document's stored credentials are the
	// fallback for setups that keep everything in one file.
	pageToken := cfg.Messenger.PageAccessToken
	verifyToken := cfg.Messenger.VerifyToken
	if credentials != nil {
		fileAccess, fileVerify := credentials()
		if pageToken == "" {
			pageToken = fileAccess
		}
		if verifyToken == "" {
			verifyToken = fileVerify
		}
	}

	provider := providers.NewGeminiProvider(cfg.AI.APIKey, cfg.AI.APIBase, cfg.AI.Model, cfg.AI.Timeout())
	fallback := &relay.Fallback{
		Provider:           provider,
		Knowledge:          ks,
		ApologyUnavailable: cfg.AI.ApologyUnavailable,
		ApologyMalformed:   cfg.AI.ApologyMalformed,
	}
	sequencer := relay.NewSequencer(time.Duration(cfg.Messenger.PacingMS) * time.Millisecond)
	engine := relay.NewEngine(ks, fallback, sequencer)

	sender := messenger.NewSender(pageToken, cfg.Messenger.GraphBase)
	webhook := messenger.NewWebhook(verifyToken, engine, sender)

	server := gateway.NewServer(cfg, ks, ring, webhook)
	if server.RateLimiter().Enabled() {
		webhook.SetRateLimiter(server.RateLimiter().Allow)
	}

	var chans []channels.Channel
	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		tg, err := telegram.New(cfg.Telegram, engine)
		if err != nil {
			slog.Error("telegram.init", "error", err)
			os.Exit(1)
		}
		chans = append(chans, tg)
	}

	slog.Info("pagebot.starting",
		"version", Version,
		"backend", backendName(cfg),
		"channels", channelNames(chans),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range chans {
		g.Go(func() error {
			if err := ch.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer stopCancel()
			return ch.Stop(stopCtx)
		})
	}
	g.Go(func() error {
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("pagebot.exit", "error", err)
		os.Exit(1)
	}
	slog.Info("pagebot.stopped")
}

// openBackend constructs the persistence layer. The second return is
// non-nil only for the file backend, whose document can carry page
// credentials alongside the knowledge base.
func openBackend(cfg *config.Config) (store.Persistence, func() (string, string)) {
	if cfg.Store.Backend == "postgres" {
		db, err := pg.OpenDB(cfg.Store.PostgresDSN)
		if err != nil {
			slog.Error("store.pg_open", "error", err)
			os.Exit(1)
		}
		return pg.New(db), nil
	}

	fs, err := file.Open(cfg.Store.Path)
	if err != nil {
		slog.Error("store.file_open", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	return fs, fs.Credentials
}

func backendName(cfg *config.Config) string {
	if cfg.Store.Backend == "postgres" {
		return "postgres"
	}
	return "file"
}

func channelNames(chans []channels.Channel) []string {
	names := []string{"messenger"}
	for _, ch := range chans {
		names = append(names, ch.Name())
	}
	return names
}
