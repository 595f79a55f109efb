package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/cache"
	"github.com/any-hub/asset-hub/internal/classify"
	"github.com/any-hub/asset-hub/internal/config"
	"github.com/any-hub/asset-hub/internal/engine"
	"github.com/any-hub/asset-hub/internal/fetch"
	"github.com/any-hub/asset-hub/internal/source"
)

// EngineOptions 将全局配置转换为引擎参数。
func EngineOptions(cfg *config.Config) engine.Options {
	g := cfg.Global
	return engine.Options{
		MinViableSize:       g.MinViableSize,
		MaxRetries:          g.MaxRetries,
		RetryBackoff:        g.RetryBackoff.DurationValue(),
		VerifyAssetHash:     g.VerifyAssetHash,
		ListingCacheTTL:     g.ListingCacheTTL.DurationValue(),
		MaxMemoryCacheMB:    g.MaxMemoryCache,
		PrefetchConcurrency: g.PrefetchConcurrency,
		PublicBaseURL:       g.PublicBaseURL,
		IgnorePatterns:      cfg.IgnorePatterns(),
	}
}

// BuildEngine 按“存储 → 分类器 → 上游表 → 下载器”顺序组装解析引擎。
func BuildEngine(cfg *config.Config, logger *logrus.Logger) (*engine.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	classifier := classify.New(cfg.ClassifierRules())
	resolver := source.NewResolver(cfg.Endpoints(), classifier)
	fetcher := fetch.New(NewUpstreamClient(cfg), logger)

	return engine.New(store, classifier, resolver, fetcher, logger, EngineOptions(cfg))
}
