package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Polling endpoint limits (per IP) - status/result/list reads
	PollingMax        int
	PollingExpiration time.Duration

	// Start limits (per IP) - each start claims a capacity slot
	StartMax        int
	StartExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 200/min - generous for normal use
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		// Polling: 120/min = 2 req/sec, plenty for a 2-3s poll loop
		PollingMax:        120,
		PollingExpiration: 1 * time.Minute,

		// Start: 10/min - research sessions are expensive
		StartMax:        10,
		StartExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_POLLING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.PollingMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.StartMax = n
		}
	}

	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.PollingMax = 600
		config.StartMax = 100
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
	})
}

// PollingRateLimiter protects the status/result/list read endpoints from
// aggressive poll loops.
func PollingRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.PollingMax,
		Expiration: config.PollingExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "poll:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Polling limit reached for IP: %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Polling too fast. Increase your poll interval.",
				"retry_after": int(config.PollingExpiration.Seconds()),
			})
		},
	})
}

// StartRateLimiter bounds how fast one client can claim capacity slots.
func StartRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.StartMax,
		Expiration: config.StartExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "start:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Start limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many research sessions started. Please wait.",
				"retry_after": int(config.StartExpiration.Seconds()),
			})
		},
	})
}
