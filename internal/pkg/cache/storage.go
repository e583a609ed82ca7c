package cache

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
)

// limiterDatabase keeps fiber limiter counters apart from the sliding
// window keys in the client's database.
const limiterDatabase = 1

// NewFiberStorage builds a fiber.Storage on the same Redis server as client.
func NewFiberStorage(client *redis.Client) fiber.Storage {
	host := "localhost"
	port := 6379
	password := ""
	if client != nil {
		opts := client.Options()
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		password = opts.Password
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: limiterDatabase,
		Reset:    false,
	})
}
