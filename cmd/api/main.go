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

	"golang.org/x/sync/errgroup"

	"mediatorflow/auth"
	"mediatorflow/custodian"
	"mediatorflow/db"
	"mediatorflow/dispute"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	callbackSecret := os.Getenv("CALLBACK_SECRET")
	if callbackSecret == "" {
		log.Fatal("CALLBACK_SECRET is required")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	custodianURL := os.Getenv("CUSTODIAN_URL")
	if custodianURL == "" {
		log.Fatal("CUSTODIAN_URL is required")
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	signer := custodian.NewSigner(callbackSecret)
	repo := dispute.NewRepository(pool)
	disputeService := dispute.NewService(pool, repo, signer)
	notifier := custodian.NewNotifier(pool, custodian.NewClient(custodianURL))
	if raw := os.Getenv("NOTIFIER_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("parse NOTIFIER_INTERVAL: %v", err)
		}
		notifier.WithInterval(interval)
	}

	server := &Server{
		disputeService: disputeService,
		tokenVerifier:  auth.NewVerifier(jwtSecret),
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("api: listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := notifier.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("api: %v", err)
	}
}
