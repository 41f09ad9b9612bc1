package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig holds process-wide settings read from the environment.
type EnvConfig struct {
	ConfigPath string
	HistoryDir string
	ListenAddr string
	LogLevel   string
	Fetch      FetchEnvConfig
	Digest     DigestEnvConfig
	SMTP       SMTPEnvConfig
	Redis      RedisEnvConfig
	S3         S3EnvConfig
	OTel       OTelEnvConfig
}

type FetchEnvConfig struct {
	Timeout     time.Duration
	Concurrency int
	UserAgent   string
	Attempts    int
}

// DigestEnvConfig drives env-only mode, used when no config document exists.
type DigestEnvConfig struct {
	WebhookURL       string
	Feeds            []string
	Keywords         []string
	BlockedKeywords  []string
	Tickers          []string
	MaxPostsPerRun   int
	PerSourceItemCap int
	RecencyWindow    time.Duration
	QuietCutoffHour  int // -1 disables quiet hours
	QuietTimezone    string
	CacheFile        string
	DryRun           bool
}

type SMTPEnvConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	TLSMode            string
	InsecureSkipVerify bool
}

type RedisEnvConfig struct {
	Addr     string
	Password string
	DB       int
}

type S3EnvConfig struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

type OTelEnvConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Protocol    string // "grpc" or "http/protobuf"
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

func LoadEnv() EnvConfig {
	otlpEndpoint := strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""))

	return EnvConfig{
		ConfigPath: envString("DIGEST_CONFIG", "digestbot.yaml"),
		HistoryDir: envString("DIGEST_HISTORY_DIR", ""),
		ListenAddr: envString("DIGEST_LISTEN_ADDR", ""),
		LogLevel:   strings.ToLower(envString("LOG_LEVEL", "info")),
		Fetch: FetchEnvConfig{
			Timeout:     envDuration("FETCH_TIMEOUT", 15*time.Second),
			Concurrency: envInt("FETCH_CONCURRENCY", 4),
			UserAgent:   envString("RSS_USER_AGENT", "digestbot/0.1"),
			Attempts:    envInt("FETCH_ATTEMPTS", 2),
		},
		Digest: DigestEnvConfig{
			WebhookURL:       envString("DIGEST_WEBHOOK_URL", ""),
			Feeds:            envList("DIGEST_FEEDS"),
			Keywords:         envList("DIGEST_KEYWORDS"),
			BlockedKeywords:  envList("DIGEST_BLOCKED_KEYWORDS"),
			Tickers:          envList("DIGEST_TICKERS"),
			MaxPostsPerRun:   envInt("MAX_POSTS_PER_RUN", DefaultMaxPostsPerRun),
			PerSourceItemCap: envInt("PER_SOURCE_ITEM_CAP", DefaultPerSourceItemCap),
			RecencyWindow:    envDuration("RECENCY_WINDOW", 0),
			QuietCutoffHour:  envInt("QUIET_CUTOFF_HOUR", -1),
			QuietTimezone:    envString("QUIET_TIMEZONE", DefaultQuietTimezone),
			CacheFile:        envString("DIGEST_CACHE_FILE", ".digest_cache.json"),
			DryRun:           envBool("DIGEST_DRY_RUN", false),
		},
		SMTP: SMTPEnvConfig{
			Host:               envString("SMTP_HOST", ""),
			Port:               envInt("SMTP_PORT", 587),
			User:               envString("SMTP_USER", ""),
			Password:           envString("SMTP_PASSWORD", ""),
			TLSMode:            envString("SMTP_TLS_MODE", ""),
			InsecureSkipVerify: envBool("SMTP_INSECURE_SKIP_VERIFY", false),
		},
		Redis: RedisEnvConfig{
			Addr:     envString("REDIS_ADDR", "localhost:6379"),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		S3: S3EnvConfig{
			Region:       envString("AWS_REGION", ""),
			Endpoint:     envString("S3_ENDPOINT", ""),
			UsePathStyle: envBool("S3_USE_PATH_STYLE", false),
		},
		OTel: OTelEnvConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			ServiceName: strings.TrimSpace(envString("OTEL_SERVICE_NAME", "digestbot")),
			Endpoint:    otlpEndpoint,
			Protocol:    strings.ToLower(strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			Headers:     parseHeaders(envString("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", defaultInsecure(otlpEndpoint)),
			SampleRatio: clamp01(envFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0)),
		},
	}
}

// TopicFromEnv builds the single topic used in env-only mode. The webhook is
// read through webhook_env so an unset DIGEST_WEBHOOK_URL surfaces at run time.
func TopicFromEnv(env DigestEnvConfig) TopicConfig {
	feeds := make([]FeedConfig, 0, len(env.Feeds))
	for _, f := range env.Feeds {
		feeds = append(feeds, FeedConfig{URL: f})
	}
	topic := TopicConfig{
		Name:             "default",
		Feeds:            feeds,
		Keywords:         env.Keywords,
		BlockedKeywords:  env.BlockedKeywords,
		Tickers:          env.Tickers,
		MaxPostsPerRun:   env.MaxPostsPerRun,
		PerSourceItemCap: env.PerSourceItemCap,
		RecencyWindow:    Duration(env.RecencyWindow),
		Store:            StoreConfig{Type: StoreFile, Path: env.CacheFile},
	}
	// 0 from the environment means unlimited, unlike the YAML default.
	if env.MaxPostsPerRun == 0 {
		topic.MaxPostsPerRun = -1
	}
	if env.PerSourceItemCap == 0 {
		topic.PerSourceItemCap = -1
	}
	if env.DryRun {
		topic.Sink.DryRun = true
	} else {
		topic.Sink.Discord = &DiscordSinkConfig{WebhookEnv: "DIGEST_WEBHOOK_URL"}
	}
	if env.QuietCutoffHour >= 0 {
		topic.QuietHours = &QuietHoursConfig{CutoffHour: env.QuietCutoffHour, Timezone: env.QuietTimezone}
	}
	return topic
}

// EnvDocument wraps the env-only topic in a validated document.
func EnvDocument(env DigestEnvConfig) (*Document, error) {
	doc := &Document{Topics: []TopicConfig{TopicFromEnv(env)}}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func envList(key string) []string {
	return splitList(os.Getenv(key))
}

// splitList splits a comma list, trimming entries and dropping empty ones.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envValue parses a set variable; unset or unparsable values yield fallback.
func envValue[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	return envValue(key, fallback, func(raw string) (bool, error) {
		switch strings.ToLower(raw) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		}
		return false, nil
	})
}

func envInt(key string, fallback int) int {
	return envValue(key, fallback, strconv.Atoi)
}

func envFloat(key string, fallback float64) float64 {
	return envValue(key, fallback, func(raw string) (float64, error) {
		return strconv.ParseFloat(raw, 64)
	})
}

func envDuration(key string, fallback time.Duration) time.Duration {
	return envValue(key, fallback, ParseDuration)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// parseHeaders reads OTLP "k=v,k2=v2" headers; malformed pairs are skipped.
func parseHeaders(raw string) map[string]string {
	var out map[string]string
	for _, pair := range splitList(raw) {
		k, v, _ := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if out == nil {
			out = map[string]string{}
		}
		out[k] = v
	}
	return out
}

func defaultInsecure(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return true
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return u.Scheme == "http"
	}
	return strings.HasPrefix(endpoint, "localhost:") ||
		strings.HasPrefix(endpoint, "127.0.0.1:") ||
		strings.HasPrefix(endpoint, "0.0.0.0:")
}
