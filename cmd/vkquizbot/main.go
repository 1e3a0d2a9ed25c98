package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/letsssgooo/vkQuizBot/internal/bot"
	"github.com/letsssgooo/vkQuizBot/internal/client"
	"github.com/letsssgooo/vkQuizBot/internal/config"
	"github.com/letsssgooo/vkQuizBot/internal/events/fetcher"
	"github.com/letsssgooo/vkQuizBot/internal/events/sender"
	"github.com/letsssgooo/vkQuizBot/internal/lib/slogcustom"
	"github.com/letsssgooo/vkQuizBot/internal/storage"
	"github.com/letsssgooo/vkQuizBot/internal/storage/postgres"
)

func main() {
	flagConfig := pflag.String("config", "", "path to the YAML config file")
	flagToken := pflag.String("token", "", "access token of the VK community")
	flagGroupID := pflag.Int64("group-id", 0, "id of the VK community")
	pflag.Parse()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *flagToken != "" {
		cfg.Bot.AccessToken = *flagToken
	}
	if *flagGroupID != 0 {
		cfg.Bot.GroupID = *flagGroupID
	}

	log := setupLogger(cfg.Log.Level)
	slog.SetDefault(log)
	log.Info("starting vk quiz bot...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStorage, err := setupStorage(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Error("failed to set up storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStorage()

	vk := client.NewHTTPClient(cfg.Credentials(), cfg.API.Host, cfg.API.RateLimit)
	handler := bot.NewHandler(st, sender.NewSender(vk, log), log)
	b := bot.NewBot(vk, fetcher.NewLongPollFetcher(vk, cfg.Poll.Wait), handler, log, cfg.ErrorBackoff())

	if err = b.Start(ctx); err != nil {
		log.Error("failed to start bot", slog.String("error", err.Error()))
		closeStorage()
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("shutting down...")

	if err = b.Stop(); err != nil {
		log.Error("failed to stop bot", slog.String("error", err.Error()))
	}

	logUsers(log, st)
}

// logUsers пишет в лог размер реестра пользователей.
func logUsers(log *slog.Logger, st storage.Storage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	users, err := st.ListUsers(ctx)
	if err != nil {
		log.Warn("failed to list bot users", slog.String("error", err.Error()))
		return
	}

	log.Info("bot users registered", slog.Int("count", len(users)))
}

func setupLogger(level string) *slog.Logger {
	return slog.New(slogcustom.NewCustomHandler(os.Stdout, slogcustom.ParseLevel(level)))
}

// setupStorage выбирает хранилище: PostgreSQL, если задан dsn, иначе память.
func setupStorage(ctx context.Context, dsn string) (storage.Storage, func(), error) {
	if dsn == "" {
		return storage.NewMemoryStorage(), func() {}, nil
	}

	st, err := postgres.NewStorage(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}

	return st, st.Close, nil
}
