// Command newsfirst-telegram-bot forwards articles from the newsfirst.lk
// daily archive to a Telegram chat, skipping anything already sent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"newsfirst-telegram-bot/archive"
	"newsfirst-telegram-bot/config"
	"newsfirst-telegram-bot/engine"
	"newsfirst-telegram-bot/notify"
	"newsfirst-telegram-bot/scheduler"
	"newsfirst-telegram-bot/tracker"
)

func main() {
	godotenv.Load()

	configPath := flag.String("config", config.GetConfigPath(), "path to config file")
	dateArg := flag.String("date", "", "target date (YYYY-MM-DD, default today)")
	daemon := flag.Bool("daemon", false, "keep running and scrape daily at run_time")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		slog.Error("failed to open tracking store", "backend", cfg.StoreBackend, "path", cfg.StorePath, "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	notifier, err := notify.NewTelegram(cfg.TelegramToken, cfg.ChatID)
	if err != nil {
		slog.Error("failed to initialize telegram bot", "error", err)
		os.Exit(1)
	}

	fetcher := archive.NewFetcher(
		archive.WithBaseURL(cfg.BaseURL),
		archive.WithTimeout(cfg.FetchTimeout()),
	)

	runner := engine.NewRunner(
		&fetcherAdapter{fetcher},
		&notifierAdapter{notifier},
		tracker.NewStore(backend),
		engine.WithRetention(cfg.Retention()),
	)

	if *daemon {
		runDaemon(cfg, runner)
		return
	}

	date, err := targetDate(*dateArg)
	if err != nil {
		slog.Error("invalid target date", "error", err)
		os.Exit(1)
	}

	if _, err := runner.Run(context.Background(), date); err != nil {
		slog.Error("run failed", "date", date.Format("2006-01-02"), "error", err)
		os.Exit(1)
	}
}

// targetDate resolves the date to scrape: the -date flag, then the
// TARGET_DATE environment variable, then today.
func targetDate(dateArg string) (time.Time, error) {
	arg := dateArg
	if arg == "" {
		arg = os.Getenv("TARGET_DATE")
	}
	if arg == "" {
		return time.Now(), nil
	}
	date, err := time.Parse("2006-01-02", arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q, use YYYY-MM-DD", arg)
	}
	return date, nil
}

func openBackend(cfg *config.Config) (tracker.Backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		backend, err := tracker.NewSQLiteBackend(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { backend.Close() }, nil
	default:
		return tracker.NewJSONBackend(cfg.StorePath), func() {}, nil
	}
}

func runDaemon(cfg *config.Config, runner *engine.Runner) {
	sched, err := scheduler.New(cfg.Timezone)
	if err != nil {
		slog.Error("failed to initialize scheduler", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	job := func() {
		date := time.Now().In(sched.Location())
		if _, err := runner.Run(context.Background(), date); err != nil {
			slog.Error("scheduled run failed", "date", date.Format("2006-01-02"), "error", err)
		}
	}
	if err := sched.Schedule(cfg.RunTime, job); err != nil {
		slog.Error("failed to schedule daily run", "run_time", cfg.RunTime, "error", err)
		os.Exit(1)
	}

	sched.Start()
	defer sched.Stop()
	slog.Info("daily run scheduled", "run_time", cfg.RunTime, "timezone", cfg.Timezone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received shutdown signal", "signal", sig.String())
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Adapters bridging the engine's interfaces to the concrete collaborators.

type fetcherAdapter struct {
	fetcher *archive.Fetcher
}

func (a *fetcherAdapter) Discover(ctx context.Context, date time.Time) ([]string, error) {
	return a.fetcher.Discover(ctx, date)
}

func (a *fetcherAdapter) Fetch(ctx context.Context, url string) (*engine.Candidate, error) {
	article, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return &engine.Candidate{
		URL:       article.URL,
		Title:     article.Title,
		Excerpt:   article.Excerpt,
		Published: article.Published,
	}, nil
}

type notifierAdapter struct {
	telegram *notify.Telegram
}

func (a *notifierAdapter) Send(ctx context.Context, c *engine.Candidate) error {
	return a.telegram.Send(ctx, notify.FormatMessage(c.Title, c.Published, c.Excerpt, c.URL))
}
