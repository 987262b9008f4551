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

	"github.com/zhouzirui/speech-coach/backend/internal/config"
	"github.com/zhouzirui/speech-coach/backend/internal/handler"
	"github.com/zhouzirui/speech-coach/backend/internal/handler/pronunciation"
	"github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
	"github.com/zhouzirui/speech-coach/backend/internal/service/ai"
	"github.com/zhouzirui/speech-coach/backend/internal/service/chat"
	"github.com/zhouzirui/speech-coach/backend/internal/service/scoring"
	"github.com/zhouzirui/speech-coach/backend/internal/service/speech"
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

	directory := specialist.NewMemoryStore(specialist.Seed())

	chatStore, closeStore, err := openChatStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open chat store: %v", err)
	}
	defer closeStore()
	chatService := chat.NewService(chatStore)

	router := handler.NewRouter(directory, chatService, newScorer(ctx, cfg))

	startServer(ctx, cfg.Server, router)
}

func openChatStore(ctx context.Context, storage config.StorageConfig) (chat.Store, func(), error) {
	if storage.Driver == "memory" {
		log.Println("[api] using in-memory chat store")
		return chat.NewMemoryStore(), func() {}, nil
	}

	db, driver, err := chat.OpenDB(ctx, storage.Driver, storage.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := chat.Migrate(ctx, db, driver); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Printf("[api] using %s chat store", driver)
	return chat.NewSQLStore(db), func() { db.Close() }, nil
}

func newScorer(ctx context.Context, cfg *config.Config) pronunciation.Scorer {
	var transcriber scoring.Transcriber
	if cfg.Speech.Enabled() {
		transcriber = speech.NewASRClient(cfg.Speech.ASRConfig())
		log.Println("Speech recognition initialized successfully")
	} else {
		log.Println("语音服务凭证未配置，发音评估将返回有限结果")
	}

	var writer scoring.FeedbackWriter
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing with template feedback - 请检查 Ark 模型相关环境变量")
		} else if feedbackWriter, err := ai.NewFeedbackWriter(ctx, chatModel); err != nil {
			log.Printf("warning: failed to build feedback writer: %v", err)
		} else {
			writer = feedbackWriter
			log.Println("AI feedback initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，使用模板反馈")
	}

	return scoring.NewService(transcriber, writer)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Speech coach backend listening on %s", addr)
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
