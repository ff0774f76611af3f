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

	"github.com/joho/godotenv"

	"github.com/pmahattanasawat/resume-chat/backend/internal/config"
	"github.com/pmahattanasawat/resume-chat/backend/internal/handler"
	"github.com/pmahattanasawat/resume-chat/backend/internal/model/resume"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/agent"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/memory"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/tools"
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

	// The knowledge base is validated up front: serving with partially
	// invalid resume data is worse than not starting.
	store, err := resume.Load(cfg.Resume.DataPath)
	if err != nil {
		log.Fatalf("failed to load resume data: %v", err)
	}
	log.Printf("resume data loaded for %s", store.PersonalInfo().Name)

	registry, err := tools.NewResumeRegistry(store)
	if err != nil {
		log.Fatalf("failed to build tool registry: %v", err)
	}

	mem := memory.NewRegistry(memory.Config{
		MaxTurns:   cfg.Memory.MaxTurns,
		SessionTTL: cfg.Memory.SessionTTL,
	})
	mem.StartSweeper(ctx, cfg.Memory.SweepInterval)

	var agentSvc *agent.Service
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Fatalf("failed to create chat model: %v", err)
		}

		agentSvc, err = agent.NewService(chatModel, registry, store.PersonalInfo().Name, agent.Config{
			MaxToolCalls: cfg.Agent.MaxToolCalls,
			HistoryLimit: cfg.Agent.HistoryLimit,
			RetryBackoff: cfg.Agent.RetryBackoff,
		})
		if err != nil {
			log.Fatalf("failed to initialize agent service: %v", err)
		}
		log.Println("agent service initialized successfully")
	} else {
		log.Println("warning: ark credentials not configured, chat endpoints will answer 503")
	}

	router := handler.NewRouter(agentSvc, mem, cfg.Agent, cfg.CORS)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("resume chat backend listening on %s", serverCfg.Addr)
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
