package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"linguacode/internal/config"
	"linguacode/internal/history"
	"linguacode/internal/httpapi"
	"linguacode/internal/identity"
	"linguacode/internal/obs"
	"linguacode/internal/orchestrator"
	"linguacode/internal/provider"
	"linguacode/internal/session"
	"linguacode/internal/store"
	"linguacode/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		docs  store.Store
		ready httpapi.ReadyProbe
	)
	var pgStore *pg.Store
	if cfg.PGDSN != "" {
		pgStore, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open postgres store: %v", err)
		}
		docs = pgStore
		ready = httpapi.ReadyProbe{Check: func(ctx context.Context) error {
			return pgStore.DB().PingContext(ctx)
		}}
	} else {
		fs, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			log.Fatalf("open file store: %v", err)
		}
		docs = fs
	}

	users := identity.NewService(docs)
	sessions, err := session.NewManager(cfg.AuthSecret, cfg.AuthIssuer, users)
	if err != nil {
		log.Fatalf("session manager: %v", err)
	}
	ledger := history.NewLedger(docs)

	translator, err := provider.NewTranslator(cfg.TranslateURL, cfg.TranslateKey)
	if err != nil {
		log.Fatalf("translation provider: %v", err)
	}
	completer, err := provider.NewCompleter(cfg.CompleteKey, cfg.CompleteURL, cfg.CompleteModel)
	if err != nil {
		log.Fatalf("completion provider: %v", err)
	}

	flows, err := orchestrator.NewService(translator, completer, ledger, cfg.LanguageMode)
	if err != nil {
		log.Fatalf("orchestrator: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Users:       users,
		Sessions:    sessions,
		History:     ledger,
		Flows:       flows,
		Ready:       ready,
		Version:     version,
		RequireAuth: cfg.RequireAuth,
		RateRPS:     cfg.RateRPS,
		RateBurst:   cfg.RateBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting linguacode-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
