package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Daryana-2906/pills-bot/config"
	"github.com/Daryana-2906/pills-bot/db"
	"github.com/Daryana-2906/pills-bot/reminder"
	"github.com/Daryana-2906/pills-bot/tgbot"

	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}

	d, err := db.NewDatabase(cfg.DatabaseURL, cfg.DBRetryAttempts, cfg.DBRetryDelay)
	if err != nil {
		log.Fatalw("failed connecting to database", "err", err)
	}
	defer d.Close()

	if err := d.Init(); err != nil {
		log.Fatalw("failed initializing database schema", "err", err)
	}

	b, err := tgbot.NewTBot(cfg.BotToken, d, cfg.SessionTTL, log)
	if err != nil {
		log.Fatalw("failed initializing Telegram bot", "err", err)
	}

	sched := reminder.NewScheduler(d, b.SendNotification, log, cfg.PollInterval, cfg.DispatchTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	go sched.Run(ctx)

	log.Info("bot is starting")
	b.Run(ctx)
}
