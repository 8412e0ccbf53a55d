package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestWithRunLoggerAttachesRunID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx, log := WithRunLogger(context.Background(), base)
	id := RunIDFromContext(ctx)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("run_id %q is not a UUID: %v", id, err)
	}
	log.Info(ctx, "trial done", Int("trial", 3), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["run_id"] != id {
		t.Fatalf("run_id = %v, want %s", rec["run_id"], id)
	}
	if rec["error"] != "boom" {
		t.Fatalf("error = %v, want boom", rec["error"])
	}
}

func TestEnsureRunIDKeepsExisting(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "fixed")
	ctx, id := EnsureRunID(ctx)
	if id != "fixed" || RunIDFromContext(ctx) != "fixed" {
		t.Fatalf("EnsureRunID replaced existing id with %q", id)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatalf("warn not logged at warn level")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	if err := (Config{Level: "WARNING", Format: "JSON"}).Validate(); err != nil {
		t.Fatalf("mixed-case config: %v", err)
	}
	if err := (Config{Level: "verbose"}).Validate(); err == nil {
		t.Fatalf("level verbose accepted")
	}
	if err := (Config{Format: "xml"}).Validate(); err == nil {
		t.Fatalf("format xml accepted")
	}
}

func TestNoopDropsEverything(t *testing.T) {
	log := Noop().With(String("k", "v"))
	log.Error(context.Background(), "dropped", Err(nil))
	if _, ok := log.(noopLogger); !ok {
		t.Fatalf("With on a no-op logger returned %T", log)
	}
}
