package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/adapters/blockchain"
	"github.com/FuturICT2/FIN4NotificationServer/internal/adapters/notifiers"
	"github.com/FuturICT2/FIN4NotificationServer/internal/config"
	"github.com/FuturICT2/FIN4NotificationServer/internal/infra/eventbus"
	"github.com/FuturICT2/FIN4NotificationServer/internal/infra/httpserver"
	"github.com/FuturICT2/FIN4NotificationServer/internal/infra/pushhub"
	"github.com/FuturICT2/FIN4NotificationServer/internal/logger"
	"github.com/FuturICT2/FIN4NotificationServer/internal/services"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.NewInMemoryEventBus(zlog.Named("eventbus"))
	identity := services.NewIdentityRegistry(zlog.Named("identity"))
	subs := services.NewSubscriptionStore(zlog.Named("subscriptions"))

	client, err := ethclient.Dial(cfg.EthWSURL)
	if err != nil {
		zlog.Fatal("node dial failed", zap.String("url", cfg.EthWSURL), zap.Error(err))
	}
	ledger, err := blockchain.NewEthLedgerQuery(client)
	if err != nil {
		zlog.Fatal("ledger query setup failed", zap.Error(err))
	}
	enrich := services.NewEnrichmentCache(ledger, zlog.Named("enrichment"))
	renderer := services.NewRenderer(enrich)

	hub := pushhub.NewHub(identity, zlog.Named("push"))
	conv := services.NewConversation(identity, subs, zlog.Named("chat"))
	bot, err := services.NewTelegramBotService(cfg.TelegramBotToken, conv, zlog.Named("telegram"))
	if err != nil {
		zlog.Fatal("telegram bot setup failed", zap.Error(err))
	}
	mailSignup := services.NewMailSignupService(identity, subs, zlog.Named("mail"))
	smtpMailer := notifiers.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword, zlog.Named("smtp"))

	dispatcher := services.NewDispatcher(
		services.DispatcherConfig{Blackout: cfg.Blackout, DeliveryTimeout: cfg.DeliveryTimeout},
		bus, identity, subs, renderer, hub, bot, smtpMailer, zlog.Named("dispatcher"))

	watcher, err := blockchain.NewFin4Watcher(cfg.EthWSURL, cfg.RegistryContract, bus, dispatcher.Activate, zlog.Named("watcher"))
	if err != nil {
		zlog.Fatal("watcher setup failed", zap.Error(err))
	}

	srv := httpserver.NewServer(cfg, mailSignup, subs, hub, zlog.Named("http"))

	go dispatcher.Run(ctx)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			zlog.Error("watcher stopped", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		if err := bot.Run(ctx); err != nil {
			zlog.Error("telegram bot stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := srv.Start(); err != nil {
			zlog.Error("http server stopped", zap.Error(err))
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	zlog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}
	dispatcher.Drain()
}
