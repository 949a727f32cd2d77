// vccheck probes the external collaborators (postgres, redis, AI endpoint)
// and reports reachability. Useful before rolling a new environment.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kapu/vc-campus-server/internal/aichat"
	"github.com/kapu/vc-campus-server/internal/sakura"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	redisURL := os.Getenv("REDIS_URL")
	aiBaseURL := os.Getenv("AI_BASE_URL")
	aiAPIKey := os.Getenv("AI_API_KEY")

	ok := true

	if dbURL == "" {
		log.Println("DATABASE_URL not set; skipping DB check")
	} else {
		repo, err := sakura.NewRepository(dbURL)
		if err != nil {
			log.Printf("db error: %v", err)
			ok = false
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			personas, err := repo.LoadPersonas(ctx)
			cancel()
			if err != nil {
				log.Printf("persona query error: %v", err)
				ok = false
			} else {
				log.Printf("db ok: %d personas", len(personas))
			}
			_ = repo.Close()
		}
	}

	if redisURL == "" {
		log.Println("REDIS_URL not set; skipping redis check")
	} else {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Printf("redis url error: %v", err)
			ok = false
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := rdb.Ping(ctx).Err()
			cancel()
			if err != nil {
				log.Printf("redis ping error: %v", err)
				ok = false
			} else {
				log.Println("redis ok")
			}
			_ = rdb.Close()
		}
	}

	if aiBaseURL == "" {
		log.Println("AI_BASE_URL not set; skipping AI check")
	} else {
		client := aichat.NewClient(aiBaseURL, aiAPIKey,
			aichat.WithTimeout(10*time.Second),
			aichat.WithRetry(1),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		reply, err := client.Chat(ctx, "reply with the single word: ok")
		cancel()
		if err != nil {
			log.Printf("ai chat error: %v", err)
			ok = false
		} else {
			log.Printf("ai ok: %q", reply)
		}
	}

	if !ok {
		os.Exit(1)
	}
}
