package main

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

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/prepx/backend/internal/config"
	"github.com/zhouzirui/prepx/backend/internal/handler"
	"github.com/zhouzirui/prepx/backend/internal/model/interview"
	"github.com/zhouzirui/prepx/backend/internal/model/user"
	authService "github.com/zhouzirui/prepx/backend/internal/service/auth"
	callService "github.com/zhouzirui/prepx/backend/internal/service/call"
	feedbackService "github.com/zhouzirui/prepx/backend/internal/service/feedback"
	vapiService "github.com/zhouzirui/prepx/backend/internal/service/vapi"
	"github.com/zhouzirui/prepx/backend/internal/storage/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	users, interviews, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialise storage: %v", err)
	}
	defer closeStore()

	authSvc := authService.NewService(users, authService.Config{TokenTTL: cfg.Auth.TokenTTL})

	// Voice vendor; without credentials calls can be created but not started
	vapiClient := vapiService.NewClient(vapiService.Config{
		APIKey:     cfg.Vapi.APIKey,
		WorkflowID: cfg.Vapi.WorkflowID,
		BaseURL:    cfg.Vapi.BaseURL,
		Timeout:    cfg.Vapi.Timeout,
	})
	vendor := vapiService.NewVendor(vapiClient)
	if vendor == nil {
		log.Println("VAPI_API_KEY 未配置，通话无法启动")
	} else {
		log.Println("Vapi client initialized successfully")
	}
	if cfg.Vapi.WebhookSecret == "" {
		log.Println("warning: VAPI_WEBHOOK_SECRET is empty, webhook accepts unsigned requests")
	}

	calls := callService.NewService(vendor, callService.Options{})

	// Feedback generation (LLM-based with heuristic fallback)
	var chatModel model.ChatModel
	if cfg.AI.Enabled() {
		chatModel, err = cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			chatModel = nil
		} else {
			log.Println("Ark chat model initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，反馈使用启发式评分")
	}

	feedbackSvc, err := feedbackService.NewService(ctx, chatModel, interviews, feedbackService.Config{
		Enabled: cfg.AI.FeedbackEnabled,
		Timeout: cfg.AI.FeedbackTimeout,
	})
	if err != nil {
		log.Fatalf("failed to initialize feedback service: %v", err)
	}
	calls.OnFinish(feedbackSvc.HandleFinished)

	go pruneLoop(ctx, calls, cfg.Server.CallRetention)

	router := handler.NewRouter(handler.Dependencies{
		Auth:          authSvc,
		Calls:         calls,
		Interviews:    interviews,
		WebhookSecret: cfg.Vapi.WebhookSecret,
		CORSOrigins:   cfg.Server.CORSOrigins,
	})

	startServer(ctx, cfg.Server, router)
}

// openStores picks the storage backend and seeds the interview catalog.
func openStores(ctx context.Context, cfg *config.Config) (user.Store, interview.Store, func(), error) {
	seed := interview.Seed()
	if cfg.Catalog.File != "" {
		loaded, err := interview.LoadCatalog(cfg.Catalog.File)
		if err != nil {
			return nil, nil, nil, err
		}
		seed = loaded
		log.Printf("loaded %d interviews from %s", len(seed), cfg.Catalog.File)
	}

	if cfg.Storage.Driver == "memory" {
		log.Println("using in-memory storage, data is lost on restart")
		return user.NewMemoryStore(), interview.NewMemoryStore(seed), func() {}, nil
	}

	db, err := sqlstore.Open(ctx, cfg.Storage.Driver, cfg.Storage.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	interviews := db.Interviews()
	if err := interviews.Seed(ctx, seed); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("seed interviews: %w", err)
	}

	log.Printf("using %s storage", db.Driver())
	closeFn := func() {
		if err := db.Close(); err != nil {
			log.Printf("warning: failed to close database: %v", err)
		}
	}
	return db.Users(), interviews, closeFn, nil
}

// pruneLoop drops finished calls once they are older than retention.
func pruneLoop(ctx context.Context, calls *callService.Service, retention time.Duration) {
	if retention <= 0 {
		return
	}
	interval := retention / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := calls.Prune(now.Add(-retention)); removed > 0 {
				log.Printf("[call] pruned %d finished calls", removed)
			}
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("PrepX backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
