package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/autoventa/dealerbot/internal/agent"
	"github.com/autoventa/dealerbot/internal/api"
	"github.com/autoventa/dealerbot/internal/auth"
	"github.com/autoventa/dealerbot/internal/catalog"
	"github.com/autoventa/dealerbot/internal/config"
	"github.com/autoventa/dealerbot/internal/delivery"
	"github.com/autoventa/dealerbot/internal/financing"
	"github.com/autoventa/dealerbot/internal/knowledge"
	"github.com/autoventa/dealerbot/internal/ledger"
	"github.com/autoventa/dealerbot/internal/llm"
	"github.com/autoventa/dealerbot/internal/queue"
	"github.com/autoventa/dealerbot/internal/session"
	"github.com/autoventa/dealerbot/internal/tools"
	"github.com/autoventa/dealerbot/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook API and the message worker",
	RunE:  runServe,
}

var servePort int

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

const ledgerRetention = 24 * time.Hour

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url (or DATABASE_URL) is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret (or JWT_SECRET) is required")
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	var records ledger.Ledger = ledger.NewMemory(ledgerRetention)
	if cfg.Redis.Addr != "" {
		client, err := ledger.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("[Serve] Redis unavailable (%v), using in-memory ledger", err)
		} else {
			records = ledger.NewRedis(client, ledgerRetention)
			defer client.Close()
		}
	}

	sessions := session.NewStore(cfg.Session.MaxTurns,
		time.Duration(cfg.Session.IdleTTLMinutes)*time.Minute)
	janitorDone := make(chan struct{})
	go sessions.RunJanitor(janitorDone, 10*time.Minute)
	defer close(janitorDone)

	inbound := queue.New(cfg.Queue.Capacity)

	repo := catalog.NewRepository(pool)
	catalogSvc := catalog.NewService(repo)
	calc := financing.NewCalculator(cfg.Financing.AnnualRate, cfg.Financing.DownPaymentPct)

	embedder := knowledge.NewHTTPEmbedder(knowledge.EmbedderConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.EmbeddingModel,
	})
	kb := knowledge.NewStore(pool, embedder)

	registry := tools.NewRegistry()
	registry.Register(&tools.SearchCarsTool{Catalog: catalogSvc, Sessions: sessions})
	registry.Register(&tools.CarDetailsTool{Catalog: catalogSvc, Sessions: sessions})
	registry.Register(&tools.FinancingTool{Calculator: calc})
	registry.Register(&tools.KnowledgeTool{Store: kb})

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	loop := agent.NewLoop(client, registry, agent.Config{
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		MaxIterations: cfg.Agent.MaxIterations,
		HistoryWindow: cfg.Agent.HistoryWindow,
	})

	sender := delivery.NewTwilioGateway(delivery.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
	})

	wrk := worker.New(inbound, sessions, loop, sender, records, worker.Config{
		PollInterval:    time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
		MaxAttempts:     cfg.Worker.MaxAttempts,
		AgentTimeout:    time.Duration(cfg.Worker.AgentTimeoutSeconds) * time.Second,
		DeliveryRetries: cfg.Worker.DeliveryRetries,
	})
	go wrk.Run(ctx)

	tokens := auth.NewJWTManager([]byte(cfg.Auth.JWTSecret),
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	creds := auth.Credentials{
		Username:     cfg.Auth.AdminUsername,
		PasswordHash: cfg.Auth.AdminPassword,
	}

	server := api.NewServer(api.Config{
		TwilioAuthToken: cfg.Twilio.AuthToken,
		PublicURL:       cfg.Server.PublicURL,
	}, inbound, sessions, loop, records, catalogSvc, calc, kb, tokens, creds)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Serve] Listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("[Serve] Received %s, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Serve] HTTP shutdown: %v", err)
	}

	// Stop the worker after the HTTP server so nothing new is enqueued while
	// the in-flight message finishes.
	cancel()
	select {
	case <-wrk.Done():
	case <-time.After(2 * time.Minute):
		log.Printf("[Serve] Worker did not stop in time")
	}

	return nil
}
