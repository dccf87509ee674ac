package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type AppConfig struct {
	SocketURL string `validate:"required,url,startswith=ws"`
	APIURL    string `validate:"required,url,startswith=http"`

	AuthTimeout    time.Duration `validate:"min=100ms"`
	SendTimeout    time.Duration `validate:"min=10ms"`
	TickInterval   time.Duration `validate:"min=10ms"`
	CountdownTicks int           `validate:"min=1,max=10"`
	ExitDelay      time.Duration `validate:"min=0"`
	PingInterval   time.Duration `validate:"min=0"`

	RedisURL    string `validate:"omitempty,url"`
	TokenKey    string `validate:"required"`
	MessagesDir string
	HistoryFile string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		AuthTimeout:    10 * time.Second,
		SendTimeout:    time.Second,
		TickInterval:   time.Second,
		CountdownTicks: 3,
		ExitDelay:      3 * time.Second,
		PingInterval:   30 * time.Second,
		TokenKey:       "arena:token",
		HistoryFile:    ".arena_history",
	}

	cfg.SocketURL = strings.TrimSpace(os.Getenv("ARENA_SOCKET_URL"))
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(os.Getenv("ARENA_API_URL")), "/")
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("ARENA_MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("ARENA_TOKEN_KEY")); v != "" {
		cfg.TokenKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_HISTORY_FILE")); v != "" {
		cfg.HistoryFile = v
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"ARENA_AUTH_TIMEOUT", &cfg.AuthTimeout},
		{"ARENA_SEND_TIMEOUT", &cfg.SendTimeout},
		{"ARENA_TICK_INTERVAL", &cfg.TickInterval},
		{"ARENA_EXIT_DELAY", &cfg.ExitDelay},
		{"ARENA_PING_INTERVAL", &cfg.PingInterval},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.env))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.env, err)
		}
		*d.dst = parsed
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_COUNTDOWN_TICKS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ARENA_COUNTDOWN_TICKS: %w", err)
		}
		cfg.CountdownTicks = n
	}

	if cfg.SocketURL == "" {
		return nil, fmt.Errorf("ARENA_SOCKET_URL is required")
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("ARENA_API_URL is required")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, describe(err)
	}
	return cfg, nil
}

// describe flattens validator errors into one readable message.
func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var b strings.Builder
	for _, fe := range verrs {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		switch fe.Tag() {
		case "required":
			fmt.Fprintf(&b, "%s is required", fe.Field())
		case "min":
			fmt.Fprintf(&b, "%s must be at least %s", fe.Field(), fe.Param())
		case "max":
			fmt.Fprintf(&b, "%s must be at most %s", fe.Field(), fe.Param())
		case "startswith":
			fmt.Fprintf(&b, "%s must start with %s", fe.Field(), fe.Param())
		default:
			fmt.Fprintf(&b, "%s failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return fmt.Errorf("invalid config: %s", b.String())
}
