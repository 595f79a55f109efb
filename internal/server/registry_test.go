package server

import (
	"testing"

	"github.com/any-hub/asset-hub/internal/config"
)

func TestInstanceRegistryLookup(t *testing.T) {
	cfg := &config.Config{
		Instances: []config.InstanceConfig{
			{Name: "forge-pack", Loader: "forge", LoaderVersion: "47.2.0", IgnorePatterns: []string{"logs/"}},
			{Name: "vanilla"},
		},
	}
	registry, err := NewInstanceRegistry(cfg)
	if err != nil {
		t.Fatalf("NewInstanceRegistry error: %v", err)
	}

	route, ok := registry.Lookup("forge-pack")
	if !ok || route.Config.Loader != "forge" || route.Config.LoaderVersion != "47.2.0" {
		t.Fatalf("unexpected route: %+v", route)
	}

	route, ok = registry.Lookup("unlisted")
	if !ok || route.Config.Name != "unlisted" || route.Config.Loader != "" {
		t.Fatalf("valid but unconfigured instance should resolve to empty metadata: %+v", route)
	}
	if route.Config.AllowList == nil || route.Config.IgnorePatterns == nil {
		t.Fatalf("empty metadata should carry empty slices")
	}

	if _, ok := registry.Lookup("../etc"); ok {
		t.Fatalf("invalid instance name should not resolve")
	}
}

func TestInstanceRegistryListKeepsOrder(t *testing.T) {
	cfg := &config.Config{
		Instances: []config.InstanceConfig{{Name: "b"}, {Name: "a"}},
	}
	registry, err := NewInstanceRegistry(cfg)
	if err != nil {
		t.Fatalf("NewInstanceRegistry error: %v", err)
	}
	list := registry.List()
	if len(list) != 2 || list[0].Config.Name != "b" || list[1].Config.Name != "a" {
		t.Fatalf("expected config order, got %+v", list)
	}
	if list[1].Config.AllowList == nil {
		t.Fatalf("AllowList should be normalized to empty slice")
	}
}

func TestInstanceRegistryRejectsDuplicates(t *testing.T) {
	cfg := &config.Config{
		Instances: []config.InstanceConfig{{Name: "a"}, {Name: "a"}},
	}
	if _, err := NewInstanceRegistry(cfg); err == nil {
		t.Fatalf("duplicate instances should fail")
	}
	if _, err := NewInstanceRegistry(nil); err == nil {
		t.Fatalf("nil config should fail")
	}
}
