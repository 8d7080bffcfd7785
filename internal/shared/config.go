package shared

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string // empty disables the preference mirror
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	BackendBase string
	BackendRPS  int
	BackendTO   time.Duration
	CacheTTL    time.Duration
	NumResults  int // hits requested per search
	MinResults  int // below this, fallback catalog substitutes
	FeedSize    int // entries the feed view shows
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	return Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", ""),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		BackendBase: env("NOMAD_API_BASE_URL", "http://localhost:8000/api/v1"),
		BackendRPS:  atoi("NOMAD_API_RPS", 5),
		BackendTO:   time.Duration(atoi("NOMAD_API_TIMEOUT_SECONDS", 20)) * time.Second,
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		NumResults:  atoi("SEARCH_NUM_RESULTS", 15),
		MinResults:  atoi("SEARCH_MIN_RESULTS", 5),
		FeedSize:    atoi("FEED_SIZE", 3),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
