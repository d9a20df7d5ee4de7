package main

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/calendar-federation/internal/application"
	"github.com/example/calendar-federation/internal/candidate"
	"github.com/example/calendar-federation/internal/config"
	"github.com/example/calendar-federation/internal/federation"
	httptransport "github.com/example/calendar-federation/internal/http"
	"github.com/example/calendar-federation/internal/identifier"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shared, err := federation.OpenSharedStore(cfg.SharedDSN)
	if err != nil {
		logger.Error("failed to open shared store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := shared.Close(); cerr != nil {
			logger.Error("failed to close shared store", "error", cerr)
		}
	}()

	idGenerator := identifier.New
	now := time.Now

	stores, err := federation.NewRouter(cfg.DataDir, idGenerator, now, logger)
	if err != nil {
		logger.Error("failed to prepare store router", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := stores.Close(); cerr != nil {
			logger.Error("failed to close user stores", "error", cerr)
		}
	}()

	generator := candidate.Generator{Step: cfg.SlotStep}
	tokenGenerator := newTokenGenerator(cfg.SessionSecret)

	authService := application.NewAuthServiceWithLogger(shared, shared, nil, tokenGenerator, idGenerator, now, cfg.SessionTTL, logger)
	userService := application.NewUserService(shared, idGenerator, now)
	groupService := application.NewGroupServiceWithLogger(stores, shared, generator, cfg.GroupHoldExpiry, idGenerator, now, logger)
	calendarService := application.NewCalendarServiceWithLogger(stores, idGenerator, now, logger)

	// Scheduling sessions live inside their owner's store, so the session
	// service is bound to the authenticated principal per request.
	sessionResolver := func(ctx context.Context, principal application.Principal) (httptransport.SessionService, error) {
		store, err := stores.UserStore(ctx, principal.UserID)
		if err != nil {
			return nil, err
		}
		return application.NewSessionServiceWithLogger(store, store, store, store, generator, idGenerator, now, logger), nil
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:          httptransport.NewAuthHandler(authService, logger),
		Users:         httptransport.NewUserHandler(userService, logger),
		Calendar:      httptransport.NewCalendarHandler(calendarService, logger),
		Sessions:      httptransport.NewSessionHandler(sessionResolver, logger),
		Groups:        httptransport.NewGroupSessionHandler(groupService, logger),
		Authenticator: authService,
		Logger:        logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})
	if cfg.RequestTimeout > 0 {
		handler = http.TimeoutHandler(handler, cfg.RequestTimeout, `{"message":"The request timed out."}`)
	}

	sweeper := application.NewHoldSweeper(cfg.HoldSweepSpec, stores.SweepExpiredHolds, logger)
	if err := sweeper.Start(); err != nil {
		logger.Error("failed to start hold sweeper", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("federation scheduler API listening", "addr", server.Addr, "data_dir", cfg.DataDir)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// newTokenGenerator yields bearer tokens derived from fresh random bytes
// keyed with the configured session secret.
func newTokenGenerator(secret string) func() string {
	return func() string {
		buf := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			buf = []byte(fmt.Sprintf("fallback-%d", time.Now().UnixNano()))
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(buf)
		return hex.EncodeToString(mac.Sum(nil))
	}
}
