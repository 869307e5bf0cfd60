// Package main runs the development emulator that stands in for the hosted
// identity provider and document store.
package main

import (
	"cmp"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/doafavor/internal/config"
	"github.com/atinyakov/doafavor/internal/db"
	"github.com/atinyakov/doafavor/internal/logger"
	"github.com/atinyakov/doafavor/internal/password"
	"github.com/atinyakov/doafavor/internal/repository"
	"github.com/atinyakov/doafavor/internal/server/handler/http"
	"github.com/atinyakov/doafavor/internal/service"
	"github.com/atinyakov/doafavor/internal/token"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	if interval := time.Duration(options.OrphanInterval); interval > 0 {
		db.StartOrphanReporter(ctx, postgresDB, interval, time.Duration(options.OrphanGrace), zapLogger)
	}

	tokens, err := token.NewManager(token.Config{
		SessionSecret:  secret(options.SessionSecret, "session", zapLogger),
		ProviderSecret: secret(options.ProviderSecret, "provider", zapLogger),
		Issuer:         options.Issuer,
		SessionTTL:     time.Duration(options.SessionTTL),
		ProviderTTL:    time.Duration(options.ProviderTTL),
	})
	if err != nil {
		zapLogger.Fatal("invalid token configuration", zap.Error(err))
	}
	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		zapLogger.Fatal("invalid password hashing configuration", zap.Error(err))
	}

	identityRepo := repository.NewPostgresIdentityRepository(postgresDB)
	documentRepo := repository.NewPostgresDocumentRepository(postgresDB)

	identityService := service.NewIdentityService(identityRepo, tokens, hasher)

	router := http.NewRouter(
		http.NewIdentityHandler(identityService, zapLogger),
		http.NewDocumentHandler(documentRepo, zapLogger),
		tokens,
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	if options.TLSCert != "" {
		zapLogger.Info("starting HTTPS emulator", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP emulator", zap.String("addr", options.Port))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("emulator stopped", zap.Error(err))
	}
}

// secret returns configured, or a random key when it is empty. Tokens signed
// with a random key do not survive a restart.
func secret(configured, name string, log *zap.Logger) []byte {
	if configured != "" {
		return []byte(configured)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatal("failed to generate signing key", zap.String("key", name), zap.Error(err))
	}
	log.Warn("no signing secret configured, using a random one", zap.String("key", name))
	return key
}
