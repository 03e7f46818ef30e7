package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skycrash/internal/api"
	"skycrash/internal/broadcast"
	"skycrash/internal/config"
	"skycrash/internal/coordinator"
	"skycrash/internal/ledger"
	"skycrash/internal/model"
	"skycrash/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] skycrash starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init store
	var st store.Store
	if cfg.Database.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite store failed, using noop: %v", err)
			st = store.NewNoopStore()
		} else {
			st = ss
			defer ss.Close()
		}
	} else {
		st = store.NewNoopStore()
	}

	// Event hub
	hub := broadcast.NewHub()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional operator webhook: mirror crash results off-process.
	if cfg.Webhook.URL != "" {
		wh := broadcast.NewWebhookNotifier(cfg.Webhook.URL)
		go forwardCrashes(ctx, hub, wh)
		log.Printf("[INFO] webhook notifier enabled: %s", cfg.Webhook.URL)
	}

	// Coordinator and ledger
	coord := coordinator.New(coordinator.Config{
		BettingWindow: cfg.BettingWindow(),
		TickInterval:  cfg.TickInterval(),
		CoolDown:      cfg.CoolDown(),
		GrowthRate:    cfg.Game.GrowthRate,
	}, hub, st)
	led := ledger.New(st, coord, hub, ledger.Limits{
		MinBet: cfg.Game.MinBet,
		MaxBet: cfg.Game.MaxBet,
	})

	go coord.Run(ctx, led)
	if err := coord.RegisterReconciliation(cfg.Reconcile.Cron, led); err != nil {
		log.Fatalf("[FATAL] register reconciliation job: %v", err)
	}
	defer coord.StopJobs()

	// HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.New(led, coord, hub, st, cfg.Game.StartingBalance).Router(),
	}
	go func() {
		log.Printf("[INFO] http server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	log.Println("[INFO] skycrash is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] http shutdown: %v", err)
	}
	log.Println("[INFO] skycrash stopped")
}

// forwardCrashes relays round results to the operator webhook. Ticks are
// skipped; only terminal round events leave the process.
func forwardCrashes(ctx context.Context, hub *broadcast.Hub, wh *broadcast.WebhookNotifier) {
	ch, cancel := hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if evt.Type != model.EventRoundCrashed {
				continue
			}
			if err := wh.SendWithRetry(ctx, evt, 3); err != nil {
				log.Printf("[ERROR] forward crash event: %v", err)
			}
		}
	}
}
