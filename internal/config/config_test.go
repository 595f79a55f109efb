package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.ListenPort != 5100 {
		t.Fatalf("ListenPort 应当被解析, got %d", cfg.Global.ListenPort)
	}
	if !filepath.IsAbs(cfg.Global.StoragePath) {
		t.Fatalf("StoragePath 应被转换为绝对路径: %s", cfg.Global.StoragePath)
	}
	if cfg.Global.RetryBackoff.DurationValue() != 2*time.Second {
		t.Fatalf("整数秒 RetryBackoff 应被解析为 2s, got %s", cfg.Global.RetryBackoff.DurationValue())
	}
	if cfg.Global.ListingCacheTTL.DurationValue() != time.Minute {
		t.Fatalf("ListingCacheTTL 应为 1m")
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 30*time.Second {
		t.Fatalf("UpstreamTimeout 应该自动填充默认值")
	}
	if cfg.Global.MinViableSize != 100 || cfg.Global.PrefetchConcurrency != 4 {
		t.Fatalf("MinViableSize/PrefetchConcurrency 默认值错误: %+v", cfg.Global)
	}
	if cfg.Upstream.LibraryBaseURL == "" || cfg.Upstream.VersionTemplate == "" {
		t.Fatalf("未声明的上游地址应使用默认值: %+v", cfg.Upstream)
	}
	if cfg.Markers.Natives != "natives-windows" || cfg.Markers.Versions != "versions" {
		t.Fatalf("Markers 合并结果错误: %+v", cfg.Markers)
	}
	if len(cfg.Mirrors) != 1 || cfg.Mirrors[0].Timeout.DurationValue() != 10*time.Second {
		t.Fatalf("显式 Mirror 应覆盖默认镜像表: %+v", cfg.Mirrors)
	}
	if len(cfg.Loaders) == 0 {
		t.Fatalf("未声明 Loader 时应使用内置列表")
	}
	if len(cfg.Instances) != 2 || cfg.Instances[0].IgnorePatterns == nil {
		t.Fatalf("实例元数据解析错误: %+v", cfg.Instances)
	}
}

func TestValidateRejectsBadInstance(t *testing.T) {
	cfgPath := testConfigPath(t, "missing.toml")

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Instance[#0].Name" {
		t.Fatalf("应返回 Instance 名称字段错误, got %v", err)
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestInstanceNameValidation(t *testing.T) {
	testCases := []struct {
		name      string
		instance  string
		shouldErr bool
	}{
		{"plain ok", "vanilla", false},
		{"dotted ok", "forge-1.20.1_pack", false},
		{"empty", "", true},
		{"leading dot", ".hidden", true},
		{"slash", "a/b", true},
		{"space", "my pack", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Instances[0].Name = tc.instance
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for instance %q", tc.instance)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for instance %q: %v", tc.instance, err)
			}
		})
	}
}

func TestValidateRejectsDuplicateInstance(t *testing.T) {
	cfg := validConfig()
	cfg.Instances = append(cfg.Instances, InstanceConfig{Name: cfg.Instances[0].Name})
	if err := cfg.Validate(); err == nil {
		t.Fatalf("重复实例名应报错")
	}
}

func TestValidateRequiresKnownLoader(t *testing.T) {
	cfg := validConfig()
	cfg.Instances[0].Loader = "liteloader"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("未声明的 Loader 应报错")
	}
}

func TestValidateUpstreamScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.AssetBaseURL = "ftp://resources.example"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("非 http/https 上游应报错")
	}

	cfg = validConfig()
	cfg.Mirrors[0].BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Mirror 缺少 BaseURL 应报错")
	}

	cfg = validConfig()
	cfg.Upstream.VersionTemplate = "https://meta.example/version.json"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("VersionTemplate 缺少 {version} 应报错")
	}
}

func TestRuntimeBuilders(t *testing.T) {
	cfg := validConfig()
	cfg.Markers.Versions = ""

	rules := cfg.ClassifierRules()
	if rules.Versions != "" || rules.AssetsObjects != "assets/objects" {
		t.Fatalf("ClassifierRules 应保留空标记: %+v", rules)
	}
	if len(rules.LoaderTokens) != 1 || rules.LoaderTokens[0] != "forge" {
		t.Fatalf("LoaderTokens 应来自 [[Loader]]: %+v", rules.LoaderTokens)
	}

	endpoints := cfg.Endpoints()
	if endpoints.Timeout != time.Second {
		t.Fatalf("Endpoints.Timeout 应取 UpstreamTimeout")
	}
	if len(endpoints.Mirrors) != 1 || endpoints.Mirrors[0].Timeout != 5*time.Second {
		t.Fatalf("镜像超时未透传: %+v", endpoints.Mirrors)
	}
	if len(endpoints.Loaders) != 1 || endpoints.Loaders[0].Group != "net/minecraftforge" {
		t.Fatalf("Loader 未透传: %+v", endpoints.Loaders)
	}

	ignore := cfg.IgnorePatterns()
	if got := ignore["pack"]; len(got) != 1 || got[0] != "logs/" {
		t.Fatalf("IgnorePatterns 错误: %+v", ignore)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:          5000,
			StoragePath:         "./data",
			MaxRetries:          1,
			RetryBackoff:        Duration(time.Second),
			UpstreamTimeout:     Duration(time.Second),
			MinViableSize:       100,
			ListingCacheTTL:     Duration(time.Minute),
			MaxMemoryCache:      8,
			PrefetchConcurrency: 2,
		},
		Upstream: UpstreamConfig{
			AssetBaseURL:    "https://resources.download.minecraft.net",
			LibraryBaseURL:  "https://libraries.minecraft.net",
			ArtifactBaseURL: "https://repo1.maven.org/maven2",
			VersionTemplate: "https://meta.example/version/{version}/{kind}",
		},
		Markers: MarkersConfig{
			AssetsObjects: "assets/objects",
			Libraries:     "libraries",
			Versions:      "versions",
			Natives:       "natives",
		},
		Mirrors: []MirrorConfig{
			{Prefix: "net/minecraftforge/", BaseURL: "https://maven.minecraftforge.net", Timeout: Duration(5 * time.Second)},
		},
		Loaders: []LoaderConfig{
			{Token: "forge", Group: "net/minecraftforge", BaseURL: "https://maven.minecraftforge.net"},
		},
		Instances: []InstanceConfig{
			{Name: "pack", Loader: "forge", IgnorePatterns: []string{"logs/"}, AllowList: []string{}},
		},
	}
}
