package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/any-hub/asset-hub/internal/cache"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.RetryBackoff.DurationValue() < 0 {
		return newFieldError("Global.RetryBackoff", "不能为负数")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.MinViableSize < 0 {
		return newFieldError("Global.MinViableSize", "不能为负数")
	}
	if g.ListingCacheTTL.DurationValue() < 0 {
		return newFieldError("Global.ListingCacheTTL", "不能为负数")
	}
	if g.MaxMemoryCache < 0 {
		return newFieldError("Global.MaxMemoryCacheSize", "不能为负数")
	}
	if g.PrefetchConcurrency < 0 {
		return newFieldError("Global.PrefetchConcurrency", "不能为负数")
	}
	if g.PublicBaseURL != "" {
		if err := validateUpstream(g.PublicBaseURL); err != nil {
			return fmt.Errorf("Global.PublicBaseURL: %w", err)
		}
	}

	if err := c.validateUpstreams(); err != nil {
		return err
	}

	tokens := map[string]struct{}{}
	for i, loader := range c.Loaders {
		if loader.Token == "" {
			return newFieldError(tableField("Loader", "", i, "Token"), "不能为空")
		}
		if _, exists := tokens[loader.Token]; exists {
			return newFieldError(tableField("Loader", loader.Token, i, "Token"), "重复")
		}
		tokens[loader.Token] = struct{}{}
		if loader.Group == "" {
			return newFieldError(tableField("Loader", loader.Token, i, "Group"), "不能为空")
		}
		if err := validateUpstream(loader.BaseURL); err != nil {
			return fmt.Errorf("%s: %w", tableField("Loader", loader.Token, i, "BaseURL"), err)
		}
	}

	for i, mirror := range c.Mirrors {
		if strings.Trim(strings.TrimSpace(mirror.Prefix), "/") == "" {
			return newFieldError(tableField("Mirror", "", i, "Prefix"), "不能为空")
		}
		if err := validateUpstream(mirror.BaseURL); err != nil {
			return fmt.Errorf("%s: %w", tableField("Mirror", mirror.Prefix, i, "BaseURL"), err)
		}
		if mirror.Timeout.DurationValue() < 0 {
			return newFieldError(tableField("Mirror", mirror.Prefix, i, "Timeout"), "不能为负数")
		}
	}

	seenNames := map[string]struct{}{}
	for i, inst := range c.Instances {
		if inst.Name == "" {
			return newFieldError(tableField("Instance", "", i, "Name"), "不能为空")
		}
		if !cache.ValidInstanceName(inst.Name) {
			return newFieldError(tableField("Instance", inst.Name, i, "Name"), "仅允许字母、数字、点、下划线与连字符")
		}
		if _, exists := seenNames[inst.Name]; exists {
			return newFieldError(tableField("Instance", inst.Name, i, "Name"), "重复")
		}
		seenNames[inst.Name] = struct{}{}

		if inst.Loader != "" {
			if _, ok := tokens[inst.Loader]; !ok {
				return newFieldError(tableField("Instance", inst.Name, i, "Loader"), fmt.Sprintf("未声明的 Loader: %s", inst.Loader))
			}
		}
		for _, pattern := range inst.IgnorePatterns {
			if strings.TrimSpace(pattern) == "" {
				return newFieldError(tableField("Instance", inst.Name, i, "IgnorePatterns"), "不能包含空规则")
			}
		}
	}

	return nil
}

func (c *Config) validateUpstreams() error {
	u := c.Upstream
	fields := []struct {
		name  string
		value string
	}{
		{"Upstream.AssetBaseURL", u.AssetBaseURL},
		{"Upstream.LibraryBaseURL", u.LibraryBaseURL},
		{"Upstream.ArtifactBaseURL", u.ArtifactBaseURL},
	}
	for _, f := range fields {
		if err := validateUpstream(f.value); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if u.VersionTemplate != "" && !strings.Contains(u.VersionTemplate, "{version}") {
		return newFieldError("Upstream.VersionTemplate", "必须包含 {version} 占位符")
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
