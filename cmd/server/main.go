// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"fourline/internal/auth"
	"fourline/internal/cache"
	"fourline/internal/database"
	"fourline/internal/handlers"
	"fourline/internal/middleware"
	"fourline/internal/models"
	"fourline/internal/rating"
	"fourline/internal/room"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	settler := rating.NewSettler(database.RatingStore{}, rating.KFactorFromEnv(), logger)
	reg := room.NewRegistry(settler, logger)

	// finished matches additionally go onto the Redis queue for the
	// historian; the service runs fine without Redis, minus the audit trail
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("redis unavailable, match history disabled: %v", err)
	} else {
		reg.OnMatchFinished = func(rec models.MatchRecord) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := cache.PublishMatchRecord(ctx, rec); err != nil {
				logger.WithError(err).Warn("failed to queue match record")
			}
		}
	}

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)
	mux.Handle("/leaderboard", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.LeaderboardHandler,
	)))

	// game websocket
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GameWSHandler(logger, reg),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
