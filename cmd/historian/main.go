// cmd/historian/main.go runs the asynchronous historian: it pops finished
// match records from the Redis queue and persists them to PostgreSQL in
// batches.
package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"fourline/internal/cache"
	"fourline/internal/database"
	"fourline/internal/historian"
)

func main() {
	logger := logrus.New()

	database.ConnectDB()
	if err := cache.ConnectRedis(); err != nil {
		logger.Fatalf("redis connection failed: %v", err)
	}

	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	queueName := os.Getenv("HISTORIAN_QUEUE_NAME")
	if queueName == "" {
		queueName = cache.DefaultQueueName
	}

	svc := historian.NewService(cache.Rdb, queueName, batchSize, time.Duration(flushMs)*time.Millisecond, logger)

	go svc.Run()
	logger.Infof("historian consuming %q (batch=%d, flush=%dms)", queueName, batchSize, flushMs)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down, flushing remaining records")
	svc.Stop()
	time.Sleep(time.Second)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
