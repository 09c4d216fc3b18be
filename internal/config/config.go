// Package config loads worker settings from the environment via viper,
// mirroring the original worker's from_env() constructors on each client.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds every environment-sourced setting the dispatcher and its
// adapters need.
type Config struct {
	RedisHost string
	RedisPort int

	DSPQueue   string
	CodecQueue string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	APIURL        string
	WebhookSecret string

	FFmpegBinary string
}

// RedisAddr returns "host:port" for queue.NewRedis.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Load reads settings from the process environment, falling back to the
// same defaults the Rust worker's from_env() functions use.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("DSP_QUEUE", "dsp_jobs")
	v.SetDefault("CODEC_QUEUE", "codec_jobs")
	v.SetDefault("MINIO_ENDPOINT", "http://localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET_AUDIO", "audio")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("API_URL", "http://localhost:3000")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("FFMPEG_BINARY", "ffmpeg")

	// REDIS_URL, when set, takes precedence over the discrete host/port
	// pair, matching the original worker's connection resolution order.
	if redisURL := v.GetString("REDIS_URL"); redisURL != "" {
		host, port, err := splitHostPort(redisURL)
		if err != nil {
			return nil, fmt.Errorf("config: REDIS_URL: %w", err)
		}
		v.Set("REDIS_HOST", host)
		v.Set("REDIS_PORT", port)
	}

	cfg := &Config{
		RedisHost:      v.GetString("REDIS_HOST"),
		RedisPort:      v.GetInt("REDIS_PORT"),
		DSPQueue:       v.GetString("DSP_QUEUE"),
		CodecQueue:     v.GetString("CODEC_QUEUE"),
		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET_AUDIO"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		APIURL:         v.GetString("API_URL"),
		WebhookSecret:  v.GetString("WEBHOOK_SECRET"),
		FFmpegBinary:   v.GetString("FFMPEG_BINARY"),
	}

	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("config: WEBHOOK_SECRET is required")
	}

	return cfg, nil
}

// splitHostPort pulls "host:port" out of a redis://[:password@]host:port
// URL without dragging in a full URL parse for a single-purpose field.
func splitHostPort(redisURL string) (string, int, error) {
	rest := redisURL
	for _, prefix := range []string{"redis://", "rediss://"} {
		if len(rest) >= len(prefix) && rest[:len(prefix)] == prefix {
			rest = rest[len(prefix):]
			break
		}
	}
	if i := lastIndexByte(rest, '@'); i >= 0 {
		rest = rest[i+1:]
	}

	colon := lastIndexByte(rest, ':')
	if colon < 0 {
		return rest, 6379, nil
	}
	host := rest[:colon]
	portStr := rest[colon+1:]
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", 0, fmt.Errorf("malformed port in %q", redisURL)
	}
	return host, port, nil
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
