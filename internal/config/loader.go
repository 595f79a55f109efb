package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/any-hub/asset-hub/internal/classify"
	"github.com/any-hub/asset-hub/internal/source"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyTableDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析存储目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("MaxRetries", 2)
	v.SetDefault("RetryBackoff", "1s")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("MinViableSize", 100)
	v.SetDefault("VerifyAssetHash", false)
	v.SetDefault("ListingCacheTTL", "0s")
	v.SetDefault("MaxMemoryCacheSize", 64)
	v.SetDefault("PrefetchConcurrency", 4)

	endpoints := source.DefaultEndpoints()
	v.SetDefault("Upstream.AssetBaseURL", endpoints.AssetBaseURL)
	v.SetDefault("Upstream.LibraryBaseURL", endpoints.LibraryBaseURL)
	v.SetDefault("Upstream.ArtifactBaseURL", endpoints.ArtifactBaseURL)
	v.SetDefault("Upstream.VersionTemplate", endpoints.VersionTemplate)

	rules := classify.DefaultRules()
	v.SetDefault("Markers.AssetsObjects", rules.AssetsObjects)
	v.SetDefault("Markers.Libraries", rules.Libraries)
	v.SetDefault("Markers.Versions", rules.Versions)
	v.SetDefault("Markers.Natives", rules.Natives)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.RetryBackoff.DurationValue() == 0 {
		g.RetryBackoff = Duration(time.Second)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.PrefetchConcurrency == 0 {
		g.PrefetchConcurrency = 4
	}
	g.PublicBaseURL = strings.TrimRight(strings.TrimSpace(g.PublicBaseURL), "/")
}

// applyTableDefaults 为未声明的 [[Mirror]] / [[Loader]] 表补齐内置的厂商镜像。
func applyTableDefaults(cfg *Config) {
	endpoints := source.DefaultEndpoints()
	if len(cfg.Mirrors) == 0 {
		for _, m := range endpoints.Mirrors {
			cfg.Mirrors = append(cfg.Mirrors, MirrorConfig{Prefix: m.Prefix, BaseURL: m.BaseURL})
		}
	}
	if len(cfg.Loaders) == 0 {
		for _, l := range endpoints.Loaders {
			cfg.Loaders = append(cfg.Loaders, LoaderConfig{Token: l.Token, Group: l.Group, BaseURL: l.BaseURL})
		}
	}
	for i := range cfg.Loaders {
		cfg.Loaders[i].Token = strings.ToLower(strings.TrimSpace(cfg.Loaders[i].Token))
		cfg.Loaders[i].Group = strings.Trim(strings.TrimSpace(cfg.Loaders[i].Group), "/")
	}
	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		inst.Name = strings.TrimSpace(inst.Name)
		inst.Loader = strings.ToLower(strings.TrimSpace(inst.Loader))
		if inst.IgnorePatterns == nil {
			inst.IgnorePatterns = []string{}
		}
		if inst.AllowList == nil {
			inst.AllowList = []string{}
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
