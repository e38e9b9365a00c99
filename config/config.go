// Package config holds the worker settings shared by the commands.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Engine EngineConfig `json:"engine"`
	Book   BookConfig   `json:"book"`
	Server ServerConfig `json:"server"`
	Log    LogConfig    `json:"log"`
}

type EngineConfig struct {
	TTMB         float64 `json:"ttMb"`
	MaxTTMB      float64 `json:"maxTtMb"`
	HistoryLimit int     `json:"historyLimit"`
}

type BookConfig struct {
	Paths      []string `json:"paths"`
	Embedded   bool     `json:"embedded"`
	MinRatio   float64  `json:"minRatio"`
	Exponent   float64  `json:"exponent"`
	SessionTTL Duration `json:"sessionTTL"`
}

type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// Duration reads "6h" style strings or plain nanosecond numbers.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(time.Duration(x))
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

func Default() Config {
	return Config{
		Engine: EngineConfig{TTMB: 64, MaxTTMB: 1024, HistoryLimit: 128},
		Book: BookConfig{
			Embedded:   true,
			MinRatio:   0.2,
			Exponent:   0.5,
			SessionTTL: Duration(6 * time.Hour),
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// BindFlags registers flags that override the loaded values once fs is parsed.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.Float64Var(&c.Engine.TTMB, "tt-mb", c.Engine.TTMB, "default transposition table size in MB")
	fs.Float64Var(&c.Engine.MaxTTMB, "max-tt-mb", c.Engine.MaxTTMB, "largest table a request may ask for")
	fs.IntVar(&c.Engine.HistoryLimit, "history-limit", c.Engine.HistoryLimit, "positions of game history kept for repetition checks")
	fs.Var((*listFlag)(&c.Book.Paths), "book", "extra opening book file (repeatable)")
	fs.BoolVar(&c.Book.Embedded, "book-embedded", c.Book.Embedded, "load the embedded opening book")
	fs.Float64Var(&c.Book.MinRatio, "book-min-ratio", c.Book.MinRatio, "drop book moves below this share of the best weight")
	fs.Float64Var(&c.Book.Exponent, "book-exponent", c.Book.Exponent, "damping exponent applied to book weights")
	fs.Var((*durationFlag)(&c.Book.SessionTTL), "book-session-ttl", "forget idle book sessions after this long")
	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "listen address")
	fs.Var((*listFlag)(&c.Server.AllowedOrigins), "origin", "allowed websocket origin (repeatable)")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "debug, info, warn or error")
	fs.BoolVar(&c.Log.Pretty, "log-pretty", c.Log.Pretty, "human readable logs")
}

func (c Config) Validate() error {
	switch {
	case c.Engine.TTMB <= 0:
		return fmt.Errorf("%w: ttMb %v", ErrInvalid, c.Engine.TTMB)
	case c.Engine.MaxTTMB < c.Engine.TTMB:
		return fmt.Errorf("%w: maxTtMb %v below ttMb %v", ErrInvalid, c.Engine.MaxTTMB, c.Engine.TTMB)
	case c.Engine.HistoryLimit < 0:
		return fmt.Errorf("%w: historyLimit %d", ErrInvalid, c.Engine.HistoryLimit)
	case c.Book.MinRatio < 0 || c.Book.MinRatio > 1:
		return fmt.Errorf("%w: minRatio %v", ErrInvalid, c.Book.MinRatio)
	case c.Book.Exponent <= 0:
		return fmt.Errorf("%w: exponent %v", ErrInvalid, c.Book.Exponent)
	case c.Book.SessionTTL <= 0:
		return fmt.Errorf("%w: sessionTTL %v", ErrInvalid, time.Duration(c.Book.SessionTTL))
	}
	return nil
}

// Store guards a Config that may be swapped while the server runs.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

func NewStore(cfg Config) *Store { return &Store{cfg: cfg} }

func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update replaces the config when it validates.
func (s *Store) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type durationFlag Duration

func (d *durationFlag) String() string { return time.Duration(*d).String() }

func (d *durationFlag) Set(v string) error {
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*d = durationFlag(parsed)
	return nil
}

// Parse loads the file named by -config (when present) and lets the remaining
// flags in args override it.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	path := configPath(args)
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	fs.String("config", path, "JSON config file")
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func configPath(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if name != "config" || !strings.HasPrefix(a, "-") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
