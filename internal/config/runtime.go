package config

import (
	"github.com/any-hub/asset-hub/internal/classify"
	"github.com/any-hub/asset-hub/internal/source"
)

// ClassifierRules 将 [Markers] 与 [[Loader]] 合并为分类规则；Loader 顺序即匹配顺序。
func (c *Config) ClassifierRules() classify.Rules {
	tokens := make([]string, 0, len(c.Loaders))
	for _, loader := range c.Loaders {
		tokens = append(tokens, loader.Token)
	}
	return classify.Rules{
		AssetsObjects: c.Markers.AssetsObjects,
		Libraries:     c.Markers.Libraries,
		Versions:      c.Markers.Versions,
		Natives:       c.Markers.Natives,
		LoaderTokens:  tokens,
	}
}

// Endpoints 构建不可变的上游地址表，供 source.Resolver 使用。
func (c *Config) Endpoints() source.Endpoints {
	endpoints := source.Endpoints{
		AssetBaseURL:    c.Upstream.AssetBaseURL,
		LibraryBaseURL:  c.Upstream.LibraryBaseURL,
		ArtifactBaseURL: c.Upstream.ArtifactBaseURL,
		VersionTemplate: c.Upstream.VersionTemplate,
		Timeout:         c.Global.UpstreamTimeout.DurationValue(),
	}
	for _, m := range c.Mirrors {
		endpoints.Mirrors = append(endpoints.Mirrors, source.Mirror{
			Prefix:  m.Prefix,
			BaseURL: m.BaseURL,
			Timeout: m.Timeout.DurationValue(),
		})
	}
	for _, l := range c.Loaders {
		endpoints.Loaders = append(endpoints.Loaders, source.Loader{
			Token:   l.Token,
			Group:   l.Group,
			BaseURL: l.BaseURL,
		})
	}
	return endpoints
}

// IgnorePatterns 返回按实例名索引的清单过滤规则。
func (c *Config) IgnorePatterns() map[string][]string {
	ignore := make(map[string][]string, len(c.Instances))
	for _, inst := range c.Instances {
		if len(inst.IgnorePatterns) > 0 {
			ignore[inst.Name] = append([]string(nil), inst.IgnorePatterns...)
		}
	}
	return ignore
}
