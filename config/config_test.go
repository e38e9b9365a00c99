package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.json")
	doc := `{"engine": {"ttMb": 16}, "book": {"sessionTTL": "30m", "paths": ["a.json"]}, "log": {"level": "debug"}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.TTMB != 16 || cfg.Engine.MaxTTMB != 1024 {
		t.Fatalf("engine got %+v", cfg.Engine)
	}
	if time.Duration(cfg.Book.SessionTTL) != 30*time.Minute || len(cfg.Book.Paths) != 1 || !cfg.Book.Embedded {
		t.Fatalf("book got %+v", cfg.Book)
	}
	if cfg.Log.Level != "debug" || cfg.Server.Addr != ":8080" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.json")
	if err := os.WriteFile(path, []byte(`{"book": {"minRatio": 3}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err got %v want ErrInvalid", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("missing file loaded")
	}
}

func TestFlagsOverride(t *testing.T) {
	cfg := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)
	args := []string{"-tt-mb", "8", "-book", "x.json", "-book", "y.json", "-book-session-ttl", "1h", "-addr", ":9000"}
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.TTMB != 8 || len(cfg.Book.Paths) != 2 || cfg.Server.Addr != ":9000" {
		t.Fatalf("got %+v", cfg)
	}
	if time.Duration(cfg.Book.SessionTTL) != time.Hour {
		t.Fatalf("ttl got %v want 1h", time.Duration(cfg.Book.SessionTTL))
	}
}

func TestStoreUpdate(t *testing.T) {
	s := NewStore(Default())
	bad := Default()
	bad.Engine.TTMB = 0
	if err := s.Update(bad); err == nil {
		t.Fatalf("invalid config accepted")
	}
	good := Default()
	good.Engine.TTMB = 32
	if err := s.Update(good); err != nil {
		t.Fatal(err)
	}
	if s.Get().Engine.TTMB != 32 {
		t.Fatalf("store not updated")
	}
}

func TestParseReadsConfigThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.json")
	if err := os.WriteFile(path, []byte(`{"engine": {"ttMb": 16}, "log": {"level": "warn"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"-config", path, "-log-level", "debug"},
		{"--config=" + path, "-log-level", "debug"},
	} {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		cfg, err := Parse(fs, args)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if cfg.Engine.TTMB != 16 || cfg.Log.Level != "debug" {
			t.Fatalf("%v: got %+v", args, cfg)
		}
	}
}
