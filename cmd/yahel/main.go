package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/yahel-nav/yahel/internal/backup"
	"github.com/yahel-nav/yahel/internal/database"
	"github.com/yahel-nav/yahel/internal/email"
	"github.com/yahel-nav/yahel/internal/logging"
	"github.com/yahel-nav/yahel/internal/push"
	"github.com/yahel-nav/yahel/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("YAHEL_LOG_LEVEL"))

	port := os.Getenv("YAHEL_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("YAHEL_DB_PATH")
	if dbPath == "" {
		dbPath = "yahel.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	pushCfg := push.Config{
		VAPIDPublicKey:  os.Getenv("YAHEL_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("YAHEL_VAPID_PRIVATE_KEY"),
		Subscriber:      os.Getenv("YAHEL_VAPID_SUBSCRIBER"),
	}
	if pushCfg.VAPIDPublicKey == "" || pushCfg.VAPIDPrivateKey == "" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("failed to generate VAPID keys: %v", err)
		}
		pushCfg.VAPIDPublicKey = pub
		pushCfg.VAPIDPrivateKey = priv
		logger.Warn("generated ephemeral VAPID keys, subscriptions will not survive a restart",
			"hint", "set YAHEL_VAPID_PUBLIC_KEY and YAHEL_VAPID_PRIVATE_KEY")
	}

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("YAHEL_S3_ENDPOINT"),
			Bucket:    os.Getenv("YAHEL_S3_BUCKET"),
			Region:    os.Getenv("YAHEL_S3_REGION"),
			AccessKey: os.Getenv("YAHEL_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("YAHEL_S3_SECRET_KEY"),
		},
		DBPath:       dbPath,
		Passphrase:   os.Getenv("YAHEL_BACKUP_PASSPHRASE"),
		ScheduleHour: envInt("YAHEL_BACKUP_HOUR", 3),
	}

	var emailClient *email.Client
	if token := os.Getenv("YAHEL_POSTMARK_TOKEN"); token != "" {
		emailClient = email.NewClient(token, os.Getenv("YAHEL_EMAIL_FROM"), os.Getenv("YAHEL_ALERT_EMAIL"))
	}

	cfg := server.Config{
		Push:               pushCfg,
		Backup:             backupCfg,
		KioskEnabled:       os.Getenv("YAHEL_KIOSK") == "true",
		ServiceTokenSecret: []byte(os.Getenv("YAHEL_SERVICE_TOKEN_SECRET")),
	}

	srv := server.New(db, cfg, emailClient, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		fmt.Printf("Yahel notifications running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// The kiosk subscribes through the public API like any other client,
	// so the listener has to be up first.
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := srv.StartKiosk(ctx, "http://localhost:"+port); err != nil {
			logger.Error("kiosk startup failed", "error", err)
		}
	}()

	srv.BackupManager().Start(ctx)
	go cleanupLoop(ctx, srv)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	cancel()
	srv.BackupManager().Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// cleanupLoop prunes rate-limiter windows and notification history on an
// hourly cadence.
func cleanupLoop(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.RateLimiter().Cleanup()
			if err := srv.HistoryStore().Cleanup(time.Now().UTC().AddDate(0, 0, -90)); err != nil {
				log.Printf("history cleanup: %v", err)
			}
		}
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
