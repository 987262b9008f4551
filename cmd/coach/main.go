package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/speech-coach/backend/internal/auth"
	"github.com/zhouzirui/speech-coach/backend/internal/cache"
	"github.com/zhouzirui/speech-coach/backend/internal/config"
	"github.com/zhouzirui/speech-coach/backend/internal/service/analysis"
	"github.com/zhouzirui/speech-coach/backend/internal/service/binder"
	"github.com/zhouzirui/speech-coach/backend/internal/service/capture"
	"github.com/zhouzirui/speech-coach/backend/internal/service/remote"
	"github.com/zhouzirui/speech-coach/backend/internal/service/session"
	"github.com/zhouzirui/speech-coach/backend/internal/service/syncer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Client.Validate(); err != nil {
		log.Fatalf("invalid client configuration: %v", err)
	}

	identity, err := auth.Static{UserID: cfg.Client.UserID, Role: auth.Role(cfg.Client.UserRole)}.Current(ctx)
	if err != nil {
		log.Fatalf("failed to resolve identity: %v", err)
	}

	httpClient := &http.Client{Timeout: cfg.Client.HTTPTimeout}
	directory := remote.NewDirectoryClient(cfg.Client.APIBaseURL, httpClient)
	persistence := remote.NewPersistenceClient(cfg.Client.APIBaseURL, httpClient)

	deps := session.Deps{
		Identity: identity,
		Binder:   binder.New(persistence, directory),
		Analyzer: analysis.NewClient(cfg.Client.AnalysisURL(), nil),
		Clips:    capture.DirStore{Dir: cfg.Client.ClipDir},
	}

	store, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		log.Printf("[coach] local cache unavailable, continuing without it: %v", err)
	} else {
		defer store.Close()
		deps.Cache = store
	}

	scheduler := syncer.New(persistence, cfg.Client.SyncDebounce)
	deps.Sync = scheduler

	source := &fileSource{}
	deps.Recorder = capture.NewController(source)

	ctrl := session.New(deps)
	out := newRenderer(os.Stdout)
	ctrl.OnChange(out.Show)

	if specialistID, ok := ctrl.Restore(ctx); ok {
		fmt.Printf("Conversa salva localmente com %s. Use /escolher %s para continuar.\n", specialistID, specialistID)
	}
	fmt.Println("Digite /ajuda para ver os comandos.")

	app := &app{
		ctrl:      ctrl,
		directory: directory,
		chats:     persistence,
		identity:  identity,
		source:    source,
		out:       os.Stdout,
	}
	lines := readLines(os.Stdin)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if !app.handle(ctx, line) {
				break loop
			}
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctrl.Close(closeCtx)
	scheduler.Wait()
}

func readLines(f *os.File) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
