// Package source 根据路径分类结果生成按优先级排序的上游候选 URL。
// 所有上游地址都来自启动时构建的不可变 Endpoints，测试可以直接替换为本地桩服务。
package source

import (
	"sort"
	"strings"
	"time"

	"github.com/any-hub/asset-hub/internal/classify"
)

// Candidate 表示一次上游尝试：URL、优先级（0 最先）与单次超时预算。
type Candidate struct {
	URL     string
	Rank    int
	Timeout time.Duration
}

// Mirror 将 maven 路径前缀映射到厂商镜像，例如 net/minecraftforge/ → maven.minecraftforge.net。
type Mirror struct {
	Prefix  string
	BaseURL string
	Timeout time.Duration
}

// Loader 描述一个构建工具产物仓库：文件名标识、maven group 路径与仓库地址。
type Loader struct {
	Token   string
	Group   string
	BaseURL string
}

// Endpoints 汇总所有上游地址，构造后不再修改。
type Endpoints struct {
	AssetBaseURL    string
	LibraryBaseURL  string
	ArtifactBaseURL string
	// VersionTemplate 支持 {version} 与 {kind}（json / client）占位符。
	VersionTemplate string
	Mirrors         []Mirror
	Loaders         []Loader
	Timeout         time.Duration
}

// DefaultEndpoints 返回官方 CDN / 镜像的默认地址。
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AssetBaseURL:    "https://resources.download.minecraft.net",
		LibraryBaseURL:  "https://libraries.minecraft.net",
		ArtifactBaseURL: "https://repo1.maven.org/maven2",
		VersionTemplate: "https://bmclapi2.bangbang93.com/version/{version}/{kind}",
		Mirrors: []Mirror{
			{Prefix: "net/minecraftforge/", BaseURL: "https://maven.minecraftforge.net"},
			{Prefix: "net/neoforged/", BaseURL: "https://maven.neoforged.net/releases"},
			{Prefix: "net/fabricmc/", BaseURL: "https://maven.fabricmc.net"},
			{Prefix: "org/quiltmc/", BaseURL: "https://maven.quiltmc.org/repository/release"},
		},
		Loaders: []Loader{
			{Token: "neoforge", Group: "net/neoforged", BaseURL: "https://maven.neoforged.net/releases"},
			{Token: "forge", Group: "net/minecraftforge", BaseURL: "https://maven.minecraftforge.net"},
			{Token: "fabric-loader", Group: "net/fabricmc", BaseURL: "https://maven.fabricmc.net"},
			{Token: "quilt-loader", Group: "org/quiltmc", BaseURL: "https://maven.quiltmc.org/repository/release"},
		},
		Timeout: 30 * time.Second,
	}
}

// Resolver 结合分类器与 Endpoints 生成候选列表。
type Resolver struct {
	endpoints  Endpoints
	classifier *classify.Classifier
	rules      classify.Rules
}

// NewResolver 复制 endpoints 并按前缀长度降序整理镜像表，保证最长前缀优先。
func NewResolver(endpoints Endpoints, classifier *classify.Classifier) *Resolver {
	mirrors := make([]Mirror, 0, len(endpoints.Mirrors))
	for _, m := range endpoints.Mirrors {
		m.Prefix = strings.TrimLeft(strings.TrimSpace(m.Prefix), "/")
		m.BaseURL = trimBase(m.BaseURL)
		if m.Prefix == "" || m.BaseURL == "" {
			continue
		}
		mirrors = append(mirrors, m)
	}
	sort.SliceStable(mirrors, func(i, j int) bool {
		return len(mirrors[i].Prefix) > len(mirrors[j].Prefix)
	})
	endpoints.Mirrors = mirrors
	endpoints.Loaders = append([]Loader(nil), endpoints.Loaders...)
	endpoints.AssetBaseURL = trimBase(endpoints.AssetBaseURL)
	endpoints.LibraryBaseURL = trimBase(endpoints.LibraryBaseURL)
	endpoints.ArtifactBaseURL = trimBase(endpoints.ArtifactBaseURL)

	if classifier == nil {
		classifier = classify.New(classify.DefaultRules())
	}
	return &Resolver{
		endpoints:  endpoints,
		classifier: classifier,
		rules:      classifier.Rules(),
	}
}

// Resolve 返回候选列表；对无法识别或格式错误的输入返回空列表。
func (r *Resolver) Resolve(relativePath, fileName string, category classify.Category) []Candidate {
	rel := strings.Trim(strings.ReplaceAll(relativePath, "\\", "/"), "/")
	if rel == "" || fileName == "" {
		return nil
	}

	var urls []string
	switch category {
	case classify.ContentAsset:
		urls = r.assetCandidates(fileName)
	case classify.SharedLibrary:
		urls = r.libraryCandidates(rel)
	case classify.BuildArtifact:
		urls = r.artifactCandidates(rel, fileName)
	case classify.VersionDescriptor:
		urls = r.versionCandidates(rel, fileName)
	default:
		return nil
	}
	return r.rank(urls)
}

// Endpoints 返回 Resolver 使用的上游配置副本。
func (r *Resolver) Endpoints() Endpoints {
	return r.endpoints
}

func (r *Resolver) assetCandidates(hash string) []string {
	if !classify.IsAssetHash(hash) || r.endpoints.AssetBaseURL == "" {
		return nil
	}
	return []string{r.endpoints.AssetBaseURL + "/" + hash[:2] + "/" + hash}
}

func (r *Resolver) libraryCandidates(rel string) []string {
	mavenPath, ok := classify.MarkerRemainder(rel, r.rules.Libraries)
	if !ok || !safeMavenPath(mavenPath) {
		return nil
	}

	var urls []string
	if mirror, ok := r.matchMirror(mavenPath); ok {
		urls = append(urls, mirror.BaseURL+"/"+mavenPath)
	}
	if r.endpoints.LibraryBaseURL != "" {
		urls = append(urls, r.endpoints.LibraryBaseURL+"/"+mavenPath)
	}
	if r.endpoints.ArtifactBaseURL != "" {
		urls = append(urls, r.endpoints.ArtifactBaseURL+"/"+mavenPath)
	}
	return urls
}

func (r *Resolver) artifactCandidates(rel, fileName string) []string {
	token := r.classifier.LoaderToken(rel, fileName)
	loader, ok := r.findLoader(token)
	if !ok {
		return nil
	}

	mavenPath, ok := classify.MarkerRemainder(rel, r.rules.Libraries)
	if !ok {
		mavenPath, ok = reconstructMavenPath(loader, fileName)
		if !ok {
			return nil
		}
	}
	if !safeMavenPath(mavenPath) {
		return nil
	}
	return []string{loader.BaseURL + "/" + mavenPath}
}

func (r *Resolver) versionCandidates(rel, fileName string) []string {
	template := strings.TrimSpace(r.endpoints.VersionTemplate)
	if template == "" {
		return nil
	}
	rest, ok := classify.MarkerRemainder(rel, r.rules.Versions)
	if !ok {
		return nil
	}
	version := strings.SplitN(rest, "/", 2)[0]
	if version == "" || !safeSegment(version) {
		return nil
	}

	kind := "json"
	if strings.HasSuffix(strings.ToLower(fileName), ".jar") {
		kind = "client"
	}
	replacer := strings.NewReplacer("{version}", version, "{kind}", kind)
	return []string{replacer.Replace(template)}
}

func (r *Resolver) matchMirror(mavenPath string) (Mirror, bool) {
	for _, mirror := range r.endpoints.Mirrors {
		if strings.HasPrefix(mavenPath, mirror.Prefix) {
			return mirror, true
		}
	}
	return Mirror{}, false
}

func (r *Resolver) findLoader(token string) (Loader, bool) {
	if token == "" {
		return Loader{}, false
	}
	for _, loader := range r.endpoints.Loaders {
		if strings.EqualFold(loader.Token, token) && trimBase(loader.BaseURL) != "" {
			loader.BaseURL = trimBase(loader.BaseURL)
			loader.Group = strings.Trim(loader.Group, "/")
			return loader, true
		}
	}
	return Loader{}, false
}

// rank 为 URL 分配优先级与超时；镜像可覆盖默认超时。
func (r *Resolver) rank(urls []string) []Candidate {
	if len(urls) == 0 {
		return nil
	}
	candidates := make([]Candidate, 0, len(urls))
	for i, u := range urls {
		candidates = append(candidates, Candidate{
			URL:     u,
			Rank:    i,
			Timeout: r.timeoutFor(u),
		})
	}
	return candidates
}

func (r *Resolver) timeoutFor(u string) time.Duration {
	for _, mirror := range r.endpoints.Mirrors {
		if mirror.Timeout > 0 && strings.HasPrefix(u, mirror.BaseURL+"/") {
			return mirror.Timeout
		}
	}
	return r.endpoints.Timeout
}

func trimBase(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func safeMavenPath(p string) bool {
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if !safeSegment(seg) {
			return false
		}
	}
	return true
}

func safeSegment(seg string) bool {
	return seg != "" && seg != "." && seg != ".." && !strings.ContainsAny(seg, "?#%\x00")
}
