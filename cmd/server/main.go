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

	"github.com/diewo77/go-prescriptions/internal/config"
	"github.com/diewo77/go-prescriptions/internal/db"
	"github.com/diewo77/go-prescriptions/internal/integrations"
	"github.com/diewo77/go-prescriptions/internal/server"
	"github.com/diewo77/go-prescriptions/internal/services"
	"github.com/diewo77/go-prescriptions/internal/token"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[BOOT] no .env file, using environment")
	}
	cfg := config.Load()

	gormDB, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("[BOOT] database: %v", err)
	}

	tokens := token.NewService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	transcriber := integrations.NewElevenLabs(cfg.ElevenLabsAPIKey)
	structurer := integrations.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)

	handler := server.New(server.Deps{
		DB:            gormDB,
		Tokens:        tokens,
		Auth:          services.NewAuthService(gormDB, tokens),
		Prescriptions: services.NewPrescriptionService(gormDB, transcriber, structurer),
		Directory:     services.NewDirectoryService(gormDB),
		Users:         services.NewUserService(gormDB),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// generous write timeout: audio uploads go through two upstream calls
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		log.Printf("[BOOT] listening on :%s (env=%s)", cfg.Port, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[BOOT] server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("[BOOT] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[BOOT] shutdown: %v", err)
	}
}
