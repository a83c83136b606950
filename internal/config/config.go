package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHistorySize        = 100
	defaultHistoryOnSubscribe = 5
	defaultDeliveryTimeout    = 2 * time.Second
)

// Store backends understood by the server.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// ServerConfig holds settings for the relay server runtime.
type ServerConfig struct {
	Host               string
	Port               int
	LogDir             string
	HistorySize        int
	HistoryOnSubscribe int
	DeliveryTimeout    time.Duration
	Store              string
	Database           DatabaseConfig
	Transport          TransportConfig
	Log                LogConfig
}

// TransportConfig tunes the websocket layer.
type TransportConfig struct {
	MaxFrameBytes  int64
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

// DatabaseConfig captures storage configuration.
type DatabaseConfig struct {
	Path string
}

// LogConfig selects level and output format of the process logger.
type LogConfig struct {
	Level  string
	Format string
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	ServerAddr    string
	Username      string
	Rooms         []string
	CommandPrefix rune
}

// ListenAddr joins host and port.
func (c ServerConfig) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadServerConfig builds the server configuration from environment variables with sensible defaults.
func LoadServerConfig() ServerConfig {
	logDir := envOrDefault("CHAT_LOG_DIR", "logs")
	if abs, err := filepath.Abs(logDir); err == nil {
		logDir = abs
	}

	cfg := ServerConfig{
		Host:               envOrDefault("CHAT_HOST", "0.0.0.0"),
		Port:               envInt("CHAT_PORT", 2024),
		LogDir:             logDir,
		HistorySize:        envInt("CHAT_HISTORY_SIZE", defaultHistorySize),
		HistoryOnSubscribe: envInt("CHAT_HISTORY_ON_SUBSCRIBE", defaultHistoryOnSubscribe),
		DeliveryTimeout:    envDuration("CHAT_DELIVERY_TIMEOUT", defaultDeliveryTimeout),
		Store:              strings.ToLower(envOrDefault("CHAT_STORE", StoreFile)),
		Database:           DatabaseConfig{Path: envOrDefault("CHAT_DB_PATH", filepath.Join(logDir, "relay.db"))},
		Transport: TransportConfig{
			MaxFrameBytes:  int64(envInt("CHAT_MAX_FRAME_BYTES", 1<<20)),
			WriteTimeout:   envDuration("CHAT_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   envDuration("CHAT_PING_INTERVAL", 20*time.Second),
			PongWait:       envDuration("CHAT_PONG_WAIT", 20*time.Second),
			SendBuffer:     envInt("CHAT_SEND_BUFFER", 64),
			AllowedOrigins: envList("CHAT_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  envOrDefault("CHAT_LOG_LEVEL", "info"),
			Format: envOrDefault("CHAT_LOG_FORMAT", "console"),
		},
	}
	return cfg.Sanitized()
}

// Sanitized replaces out-of-range values with their defaults.
func (c ServerConfig) Sanitized() ServerConfig {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 2024
	}
	if c.HistorySize < 1 {
		c.HistorySize = defaultHistorySize
	}
	if c.HistoryOnSubscribe < 0 {
		c.HistoryOnSubscribe = 0
	}
	if c.HistoryOnSubscribe > c.HistorySize {
		c.HistoryOnSubscribe = c.HistorySize
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = defaultDeliveryTimeout
	}
	if c.Store != StoreSQLite {
		c.Store = StoreFile
	}
	if c.Transport.MaxFrameBytes <= 0 {
		c.Transport.MaxFrameBytes = 1 << 20
	}
	if c.Transport.SendBuffer < 1 {
		c.Transport.SendBuffer = 64
	}
	if c.Transport.PingInterval < 0 {
		c.Transport.PingInterval = 0
	}
	if c.Transport.PongWait <= 0 {
		c.Transport.PongWait = 20 * time.Second
	}
	return c
}

// LoadClientConfig builds the client configuration from environment variables.
func LoadClientConfig() ClientConfig {
	prefix := envOrDefault("CHAT_COMMAND_PREFIX", "/")
	runes := []rune(prefix)
	commandPrefix := '/'
	if len(runes) > 0 {
		commandPrefix = runes[0]
	}
	return ClientConfig{
		ServerAddr:    envOrDefault("CHAT_SERVER_ADDR", "localhost:2024"),
		Username:      strings.TrimSpace(os.Getenv("CHAT_USERNAME")),
		Rooms:         envList("CHAT_ROOMS"),
		CommandPrefix: commandPrefix,
	}
}

func envOrDefault(key, value string) string {
	if env, ok := os.LookupEnv(key); ok {
		return env
	}
	return value
}

func envDuration(key string, def time.Duration) time.Duration {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(env); err == nil {
			return parsed
		}
	}
	return def
}

func envInt(key string, def int) int {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return parsed
		}
	}
	return def
}

func envList(key string) []string {
	env, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(env, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
