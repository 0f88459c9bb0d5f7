package config

import (
	"errors"
	"testing"
	"time"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(env(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Addr())
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"DB_URL":               "postgres://db/conductor",
		"HTTP_PORT":            "9000",
		"MAX_CONCURRENT_TASKS": "3",
		"POLL_INTERVAL":        "2s",
		"INPUT_TIMEOUT":        "90s",
		"LLM_PROVIDER":         "openai",
		"OPENAI_API_KEY":       "sk-test",
		"OPENAI_MODEL":         "",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseURL != "postgres://db/conductor" || cfg.Addr() != ":9000" {
		t.Errorf("unexpected connection settings: %+v", cfg)
	}
	if cfg.MaxConcurrentTasks != 3 || cfg.PollInterval != 2*time.Second || cfg.InputTimeout != 90*time.Second {
		t.Errorf("unexpected worker settings: %+v", cfg)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.APIKey != "sk-test" || cfg.LLM.Model != Default().LLM.Model {
		t.Errorf("unexpected llm settings: %+v", cfg.LLM)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"non-numeric concurrency", map[string]string{"MAX_CONCURRENT_TASKS": "many"}},
		{"zero concurrency", map[string]string{"MAX_CONCURRENT_TASKS": "0"}},
		{"bad duration", map[string]string{"POLL_INTERVAL": "soon"}},
		{"negative timeout", map[string]string{"INPUT_TIMEOUT": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(env(tt.vars))
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("expected ErrInvalidValue, got %v", err)
			}
		})
	}
}
