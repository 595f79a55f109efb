package classify

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Profile 记录一个类别的服务策略，供解析引擎决策与诊断端展示。
type Profile struct {
	Category    Category
	Description string
	// ContentType 为空时使用 application/octet-stream。
	ContentType string
	// AllowUpstream 表示该类别可以向上游探测候选 URL。
	AllowUpstream bool
	// AllowPlaceholder 表示所有上游失败后可以合成占位内容。
	AllowPlaceholder bool
	// Cacheable 表示结果会写回本地存储。
	Cacheable bool
}

var globalRegistry = newRegistry()

type registry struct {
	mu       sync.RWMutex
	profiles map[Category]Profile
}

func newRegistry() *registry {
	return &registry{profiles: make(map[Category]Profile)}
}

func init() {
	for _, profile := range builtinProfiles() {
		globalRegistry.mustRegister(profile)
	}
}

func builtinProfiles() []Profile {
	return []Profile{
		{
			Category:         ContentAsset,
			Description:      "Content-addressed asset object served from the asset CDN",
			AllowUpstream:    true,
			AllowPlaceholder: true,
			Cacheable:        true,
		},
		{
			Category:         SharedLibrary,
			Description:      "Maven-layout library resolved through vendor, library and artifact mirrors",
			ContentType:      "application/java-archive",
			AllowUpstream:    true,
			AllowPlaceholder: true,
			Cacheable:        true,
		},
		{
			Category:         BuildArtifact,
			Description:      "Mod loader build artifact reconstructed from maven coordinates",
			ContentType:      "application/java-archive",
			AllowUpstream:    true,
			AllowPlaceholder: true,
			Cacheable:        true,
		},
		{
			Category:         VersionDescriptor,
			Description:      "Version descriptor or client jar resolved from the version template",
			ContentType:      "application/json",
			AllowUpstream:    true,
			AllowPlaceholder: true,
			Cacheable:        true,
		},
		{
			Category:         NativeBinary,
			Description:      "Platform native library, never fetched upstream",
			AllowPlaceholder: true,
			Cacheable:        true,
		},
		{
			Category:    TemporaryOrIgnorable,
			Description: "Transient launcher file answered with an empty body",
		},
		{
			Category:    Unknown,
			Description: "Unclassified path, served only from the local store",
		},
	}
}

// Register 将类别策略加入全局注册表，重复类别会返回错误。
func Register(profile Profile) error {
	return globalRegistry.register(profile)
}

// Lookup 返回类别的策略；未注册时回退为 Unknown 的策略。
func Lookup(category Category) Profile {
	if profile, ok := globalRegistry.resolve(category); ok {
		return profile
	}
	profile, _ := globalRegistry.resolve(Unknown)
	return profile
}

// List 返回按类别排序的策略列表。
func List() []Profile {
	return globalRegistry.list()
}

// ContentTypeFor 根据类别策略与文件扩展名推断响应 Content-Type。
func ContentTypeFor(category Category, fileName string) string {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return "application/json"
	case strings.HasSuffix(lower, ".xml"), strings.HasSuffix(lower, ".pom"):
		return "application/xml"
	case strings.HasSuffix(lower, ".jar"):
		return "application/java-archive"
	}
	if ct := Lookup(category).ContentType; ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (r *registry) register(profile Profile) error {
	key := Category(strings.ToLower(strings.TrimSpace(string(profile.Category))))
	if key == "" {
		return fmt.Errorf("category is required")
	}
	profile.Category = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[key]; exists {
		return fmt.Errorf("category %s already registered", key)
	}
	r.profiles[key] = profile
	return nil
}

func (r *registry) mustRegister(profile Profile) {
	if err := r.register(profile); err != nil {
		panic(err)
	}
}

func (r *registry) resolve(category Category) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[category]
	return profile, ok
}

func (r *registry) list() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.profiles) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.profiles))
	for key := range r.profiles {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)

	result := make([]Profile, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.profiles[Category(key)])
	}
	return result
}
