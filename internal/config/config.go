// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cowrow/cowrow/engine"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Empty connection strings disable the
// matching integration.
type Config struct {
	Env      string
	HTTPAddr string

	Seats            int
	HandSize         int
	PenaltyThreshold int
	CardPenalty      int
	PromptTimeout    time.Duration

	ConsoleEnabled bool
	AllowedOrigins []string // websocket origin patterns

	JWTSecret string
	TokenTTL  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AMQPURL       string

	LogLevel  string
	LogFormat string // "json" or "text"
}

// Load reads files (".env" when none are given) into the environment without
// overriding variables already set, then parses the environment.
// Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv parses configuration through lookup.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}
	def := engine.DefaultRules()
	cfg := Config{
		Env:              p.str("APP_ENV", "development"),
		HTTPAddr:         p.str("HTTP_ADDR", ":3000"),
		Seats:            p.integer("SEATS", def.Seats),
		HandSize:         p.integer("HAND_SIZE", def.HandSize),
		PenaltyThreshold: p.integer("PENALTY_THRESHOLD", def.PenaltyThreshold),
		CardPenalty:      p.integer("CARD_PENALTY", def.CardPenalty),
		PromptTimeout:    p.duration("PROMPT_TIMEOUT", 30*time.Second),
		ConsoleEnabled:   p.boolean("CONSOLE_ENABLED", true),
		AllowedOrigins:   p.list("ALLOWED_ORIGINS"),
		JWTSecret:        p.str("JWT_SECRET", ""),
		TokenTTL:         p.duration("TOKEN_TTL", 24*time.Hour),
		RedisAddr:        p.str("REDIS_ADDR", ""),
		RedisPassword:    p.str("REDIS_PASSWORD", ""),
		RedisDB:          p.integer("REDIS_DB", 0),
		AMQPURL:          p.str("AMQP_URL", ""),
		LogLevel:         p.str("LOG_LEVEL", "info"),
		LogFormat:        p.str("LOG_FORMAT", "text"),
	}
	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if cfg.PromptTimeout < 0 {
		return Config{}, fmt.Errorf("PROMPT_TIMEOUT must not be negative, got %s", cfg.PromptTimeout)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}
	if cfg.Production() && cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required in production")
	}
	if _, err := cfg.Rules(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether APP_ENV is "production".
func (c Config) Production() bool { return c.Env == "production" }

// Rules returns the validated game rules.
func (c Config) Rules() (engine.Rules, error) {
	r := engine.DefaultRules()
	r.Seats = c.Seats
	r.HandSize = c.HandSize
	r.PenaltyThreshold = c.PenaltyThreshold
	r.CardPenalty = c.CardPenalty
	if err := r.Validate(); err != nil {
		return engine.Rules{}, fmt.Errorf("rules: %w", err)
	}
	return r, nil
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) raw(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) str(key, def string) string {
	if v, ok := p.raw(key); ok {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}

func (p *parser) boolean(key string, def bool) bool {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid bool for %s: %q", key, v))
		return def
	}
	return b
}

func (p *parser) list(key string) []string {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
