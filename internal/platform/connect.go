package platform

import (
	"log"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

// NewRedisClient initializes and returns a Redis client
func NewRedisClient() *redis.Client {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	log.Println("Redis client initialized")
	return rdb
}
