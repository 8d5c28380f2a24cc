package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reqstream-gateway/middleware/reqstream"
	"reqstream-gateway/middleware/reqstream/application"
	"reqstream-gateway/middleware/reqstream/domain"
	"reqstream-gateway/middleware/reqstream/infra"

	"go.uber.org/zap"
)

func main() {
	// Exemplo: consumindo a sequência diretamente no seu servidor (sem proxy).
	// Um único leitor responde em ordem; com o buffer cheio o excedente recebe 503.
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewStore(5, 10)
	store.StartJanitor(ctx)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	src := reqstream.NewSource(addr,
		reqstream.WithLogger(logger),
		reqstream.WithRateLimit(reqstream.RateLimit{
			Store:              store,
			KeyHeader:          "X-Api-Key", // ou vazio para usar IP
			TrustXForwardedFor: true,
			AddHeaders:         true,
		}),
	)

	seq, err := application.NewSequence(application.Config{HighWaterMark: 50, Logger: logger}, src)
	if err != nil {
		logger.Fatal("sequence", zap.Error(err))
	}
	seq.Notifier().Subscribe(infra.NewOverloadLogger(logger, time.Second, 1))

	srv := &http.Server{
		Addr:              addr,
		Handler:           src,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()
	logger.Info("example server listening", zap.String("addr", addr))

	for rc := range seq.All(ctx) {
		_, res, ok := reqstream.HTTP(rc)
		if !ok {
			rc.Response.Finish(domain.StatusInternalError, "Internal Server Error")
			continue
		}
		res.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(res, "ok\n")
		res.End()
	}

	for _, rc := range seq.Drain() {
		rc.Response.Finish(domain.StatusServiceUnavailable, "Service Unavailable")
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}
