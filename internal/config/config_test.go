package config

import (
	"reflect"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" || cfg.DBDriver != "sqlite" || cfg.UpstreamTimeout != 15*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.ResyncSchedule == "" {
		t.Fatal("resync schedule should default on")
	}
}

func TestFromEnv_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,,")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":9090" || !cfg.LogPretty || cfg.UpstreamTimeout != 3*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
}
