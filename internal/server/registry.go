package server

import (
	"errors"
	"fmt"

	"github.com/any-hub/asset-hub/internal/cache"
	"github.com/any-hub/asset-hub/internal/config"
)

// InstanceRoute 包装实例元数据，供路由层直接复用。
type InstanceRoute struct {
	// Config 是用户在 config.toml 中声明的实例字段副本，避免外部修改。
	Config config.InstanceConfig
}

// InstanceRegistry 提供实例名到 InstanceRoute 的查询能力。
type InstanceRegistry struct {
	routes  map[string]*InstanceRoute
	ordered []*InstanceRoute
}

// NewInstanceRegistry 根据配置构建实例表。调用方应在启动阶段创建一次并复用。
func NewInstanceRegistry(cfg *config.Config) (*InstanceRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &InstanceRegistry{
		routes: make(map[string]*InstanceRoute, len(cfg.Instances)),
	}

	for _, inst := range cfg.Instances {
		if !cache.ValidInstanceName(inst.Name) {
			return nil, fmt.Errorf("invalid instance name %q", inst.Name)
		}
		if _, exists := registry.routes[inst.Name]; exists {
			return nil, fmt.Errorf("duplicate instance %s", inst.Name)
		}
		inst.IgnorePatterns = append([]string{}, inst.IgnorePatterns...)
		inst.AllowList = append([]string{}, inst.AllowList...)
		route := &InstanceRoute{Config: inst}
		registry.routes[inst.Name] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 返回实例描述。合法但未配置的实例名返回空元数据，ok 仅在名称非法时为 false。
func (r *InstanceRegistry) Lookup(name string) (InstanceRoute, bool) {
	if !cache.ValidInstanceName(name) {
		return InstanceRoute{}, false
	}
	if r != nil {
		if route, ok := r.routes[name]; ok {
			return *route, true
		}
	}
	return InstanceRoute{
		Config: config.InstanceConfig{Name: name, IgnorePatterns: []string{}, AllowList: []string{}},
	}, true
}

// List 返回已配置的实例（按配置定义的顺序），用于 instances.json 输出。
func (r *InstanceRegistry) List() []InstanceRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]InstanceRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}
