package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chat-gateway/internal/analytics"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/config"
	"chat-gateway/internal/gateway"
	"chat-gateway/internal/scheduler"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	svc, rec, err := chat.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var sched *scheduler.Scheduler
	if rec != nil && cfg.ReportCron != "" {
		sched, err = scheduler.New(cfg.ReportCron, analytics.DailyReport(rec, time.Now))
		if err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		sched.Start()
	}

	gin.SetMode(gin.ReleaseMode)
	srv := gateway.New(svc, gateway.Options{
		Addr:            cfg.Addr(),
		CORSOrigin:      cfg.CORSOrigin,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("❌ Server failed: %v", err)
		}
	case sig := <-sigch:
		log.Printf("Received %s, shutting down", sig)
		if err := srv.Stop(); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
		}
		<-errCh
	}

	if sched != nil {
		sched.Stop()
	}
}
