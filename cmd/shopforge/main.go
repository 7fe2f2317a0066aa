package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopforge/internal/config"
	"shopforge/internal/events"
	"shopforge/internal/http/handlers"
	applog "shopforge/internal/log"
	"shopforge/internal/payment"
	"shopforge/internal/repos"
	"shopforge/internal/telemetry"
)

const version = "1.0.0"

func main() {
	log := applog.L()

	// Optional file logging
	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.WithError(err).WithField("log_file", path).Warn("log.file.open.fail")
		} else {
			defer f.Close()
			applog.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	cfg := config.Load()

	ctx := context.Background()
	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "shopforge", version)
	if err != nil {
		log.WithError(err).Fatal("telemetry.init.fail")
	}

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("db.open.fail")
	}

	pub := events.New(cfg.KafkaBrokers)

	var gw payment.Gateway
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		gw = payment.NewRazorpay(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RequestTimeout)
	} else {
		log.Warn("payment.gateway.disabled")
	}

	deps := handlers.NewDeps(db, cfg, gw, pub)
	deps.Version = version
	app, err := handlers.NewApp(deps, cfg)
	if err != nil {
		log.WithError(err).Fatal("routes.invalid")
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Fatal("server.listen.fail")
		}
	}()
	log.WithField("port", cfg.Port).Info("server.start")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server.stop")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("server.shutdown.fail")
	}
	if err := pub.Close(); err != nil {
		log.WithError(err).Error("events.close.fail")
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracer(sctx); err != nil {
		log.WithError(err).Error("telemetry.shutdown.fail")
	}
	if err := db.Close(); err != nil {
		log.WithError(err).Error("db.close.fail")
	}
}
