package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/homerepairhub/repair-scheduler/internal/config"
	dbpkg "github.com/homerepairhub/repair-scheduler/internal/db"
	"github.com/homerepairhub/repair-scheduler/internal/locking"
	"github.com/homerepairhub/repair-scheduler/internal/middleware"
	"github.com/homerepairhub/repair-scheduler/internal/notification"
	"github.com/homerepairhub/repair-scheduler/internal/routes"
	"github.com/homerepairhub/repair-scheduler/internal/storage"
)

func main() {

	cfg := config.Load()

	db, err := dbpkg.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := dbpkg.Migrate(db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	// Redis opcional: sem ele o lock vira local ao processo
	var locker locking.Locker = locking.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		locker = locking.NewRedisLocker(rdb)
	}

	var store storage.Store = storage.LogStore{}
	if cfg.S3Bucket != "" {
		store = storage.NewS3Store(storage.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
	}

	var sender notification.Sender
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		sender = &notification.WebPushSender{}
	}
	notifier := notification.NewDispatcher(db, sender,
		cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)

	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sweeper := routes.RegisterRoutes(r, db, cfg, locker, store, notifier)
	go sweeper.Run(context.Background())

	log.Printf("Server running on %s", cfg.Addr())
	if err := r.Run(cfg.Addr()); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
