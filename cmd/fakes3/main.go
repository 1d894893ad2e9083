package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-upload/pkg/s3upload"
	"github.com/tendant/simple-upload/pkg/s3upload/fakes3"
)

type Config struct {
	Addr            string        `env:"FAKES3_ADDR" env-default:":9000"`
	AccessKeyID     string        `env:"FAKES3_ACCESS_KEY_ID" env-default:"fakes3"`
	SecretAccessKey string        `env:"FAKES3_SECRET_ACCESS_KEY" env-default:"fakes3secret"`
	SessionToken    string        `env:"FAKES3_SESSION_TOKEN"`
	Buckets         string        `env:"FAKES3_BUCKETS" env-default:"uploads"`
	MaxSkew         time.Duration `env:"FAKES3_MAX_SKEW" env-default:"15m"`
}

func main() {
	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	var buckets []string
	for _, b := range strings.Split(config.Buckets, ",") {
		if b = strings.TrimSpace(b); b != "" {
			buckets = append(buckets, b)
		}
	}

	srv, err := fakes3.New(s3upload.Credentials{
		AccessKeyID:     config.AccessKeyID,
		SecretAccessKey: config.SecretAccessKey,
		SessionToken:    config.SessionToken,
	}, fakes3.WithBuckets(buckets...), fakes3.WithMaxSkew(config.MaxSkew))
	if err != nil {
		slog.Error("Failed to create server", "err", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              config.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "err", err)
		}
	}()

	slog.Info("fakes3 listening", "addr", config.Addr, "buckets", buckets, "access_key_id", config.AccessKeyID)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "err", err)
		os.Exit(1)
	}
}
