package server

import (
	"testing"
	"time"

	"github.com/any-hub/asset-hub/internal/config"
)

func TestNewUpstreamClientUsesConfigTimeout(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{
			UpstreamTimeout: config.Duration(45 * time.Second),
		},
	}

	client := NewUpstreamClient(cfg)
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
}

func TestNewUpstreamClientCoversMirrorTimeout(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{
			UpstreamTimeout: config.Duration(10 * time.Second),
		},
		Mirrors: []config.MirrorConfig{
			{Prefix: "net/minecraftforge/", BaseURL: "https://maven.example", Timeout: config.Duration(time.Minute)},
		},
	}

	client := NewUpstreamClient(cfg)
	if client.Timeout != time.Minute {
		t.Fatalf("expected client timeout to cover mirror timeout, got %s", client.Timeout)
	}
}

func TestNewUpstreamClientDefaults(t *testing.T) {
	if client := NewUpstreamClient(nil); client.Timeout != 30*time.Second {
		t.Fatalf("expected default timeout 30s, got %s", client.Timeout)
	}
}
