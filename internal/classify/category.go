package classify

import (
	"path"
	"strings"
)

// Category 描述一个文件在解析流程中的语义类别。
type Category string

const (
	ContentAsset         Category = "content-asset"
	SharedLibrary        Category = "shared-library"
	BuildArtifact        Category = "build-artifact"
	VersionDescriptor    Category = "version-descriptor"
	NativeBinary         Category = "native-binary"
	TemporaryOrIgnorable Category = "temporary"
	Unknown              Category = "unknown"
)

// AssetHashLength 是资源对象文件名（SHA-1 十六进制）的固定长度。
const AssetHashLength = 40

// Rules 描述分类所需的目录标记与构建工具标识；标记为空时对应规则失效。
type Rules struct {
	AssetsObjects string
	Libraries     string
	Versions      string
	Natives       string
	LoaderTokens  []string
}

// DefaultRules 返回与官方启动器目录结构一致的默认标记。
func DefaultRules() Rules {
	return Rules{
		AssetsObjects: "assets/objects",
		Libraries:     "libraries",
		Versions:      "versions",
		Natives:       "natives",
		LoaderTokens:  []string{"neoforge", "forge", "fabric-loader", "quilt-loader"},
	}
}

var (
	temporaryExtensions = []string{".x", ".tmp", ".part", ".lock"}
	nativeExtensions    = []string{".dll", ".so", ".dylib", ".jnilib"}
	documentExtensions  = []string{".json"}
)

// Classifier 持有不可变的 Rules，可在多个 goroutine 间共享。
type Classifier struct {
	rules Rules
}

// New 以给定规则构建分类器。
func New(rules Rules) *Classifier {
	rules.AssetsObjects = normalizeMarker(rules.AssetsObjects)
	rules.Libraries = normalizeMarker(rules.Libraries)
	rules.Versions = normalizeMarker(rules.Versions)
	rules.Natives = normalizeMarker(rules.Natives)
	tokens := make([]string, 0, len(rules.LoaderTokens))
	for _, token := range rules.LoaderTokens {
		if token = strings.ToLower(strings.TrimSpace(token)); token != "" {
			tokens = append(tokens, token)
		}
	}
	rules.LoaderTokens = tokens
	return &Classifier{rules: rules}
}

// Rules 返回分类器使用的规则副本。
func (c *Classifier) Rules() Rules {
	rules := c.rules
	rules.LoaderTokens = append([]string(nil), c.rules.LoaderTokens...)
	return rules
}

// Classify 按顺序匹配规则：临时文件 → 资源对象 → 共享库 → 构建产物 → 版本描述 → 原生库。
// fileName 为空时取 relativePath 的最后一段。
func (c *Classifier) Classify(relativePath, fileName string) Category {
	rel := normalizePath(relativePath)
	if fileName == "" {
		fileName = path.Base(rel)
	}
	lowerName := strings.ToLower(fileName)

	if IsTemporary(fileName) {
		return TemporaryOrIgnorable
	}
	if c.rules.AssetsObjects != "" && IsAssetHash(fileName) && containsMarker(rel, c.rules.AssetsObjects) {
		return ContentAsset
	}
	if c.rules.Libraries != "" && containsMarker(rel, c.rules.Libraries) {
		return SharedLibrary
	}
	if c.LoaderToken(rel, fileName) != "" {
		return BuildArtifact
	}
	if c.rules.Versions != "" && containsMarker(rel, c.rules.Versions) {
		if hasAnySuffix(lowerName, documentExtensions) || isClientJar(rel, c.rules.Versions) {
			return VersionDescriptor
		}
	}
	if c.rules.Natives != "" && containsMarker(rel, c.rules.Natives) && hasAnySuffix(lowerName, nativeExtensions) {
		return NativeBinary
	}
	return Unknown
}

// LoaderToken 返回路径或文件名中出现的第一个构建工具标识，未命中时返回空串。
func (c *Classifier) LoaderToken(relativePath, fileName string) string {
	lowerName := strings.ToLower(fileName)
	lowerRel := strings.ToLower(normalizePath(relativePath))
	for _, token := range c.rules.LoaderTokens {
		if strings.Contains(lowerName, token) || strings.Contains(lowerRel, token) {
			return token
		}
	}
	return ""
}

// IsTemporary 判断文件名是否属于临时/可忽略文件（.x 后缀、jna*.dll 等）。
func IsTemporary(fileName string) bool {
	lower := strings.ToLower(fileName)
	if hasAnySuffix(lower, temporaryExtensions) {
		return true
	}
	if strings.HasPrefix(lower, "jna") && strings.Contains(lower, ".dll") {
		return true
	}
	return strings.HasPrefix(fileName, "~$")
}

// IsAssetHash 判断文件名是否恰好为 40 位小写十六进制摘要。
func IsAssetHash(name string) bool {
	if len(name) != AssetHashLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return false
		}
	}
	return true
}

// IsNativeHolder 判断目录名是否为原生库解压目录（natives、*-natives-* 等）。
func IsNativeHolder(dirName string) bool {
	lower := strings.ToLower(dirName)
	return lower == "natives" || strings.Contains(lower, "-natives")
}

// MarkerRemainder 返回 marker 之后的路径部分，例如 libraries/a/b.jar → a/b.jar。
func MarkerRemainder(relativePath, marker string) (string, bool) {
	rel := normalizePath(relativePath)
	marker = normalizeMarker(marker)
	if marker == "" {
		return "", false
	}
	segments := strings.Split(rel, "/")
	markerSegs := strings.Split(marker, "/")
	for i := 0; i+len(markerSegs) <= len(segments); i++ {
		if !segmentsEqualFold(segments[i:i+len(markerSegs)], markerSegs) {
			continue
		}
		rest := strings.Join(segments[i+len(markerSegs):], "/")
		if rest == "" {
			return "", false
		}
		return rest, true
	}
	return "", false
}

func containsMarker(rel, marker string) bool {
	_, ok := MarkerRemainder(rel, marker)
	return ok
}

func isClientJar(rel, versionsMarker string) bool {
	rest, ok := MarkerRemainder(rel, versionsMarker)
	if !ok {
		return false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return false
	}
	return parts[1] == parts[0]+".jar"
}

func segmentsEqualFold(a, b []string) bool {
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func hasAnySuffix(value string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(value, suffix) {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.Trim(p, "/")
}

func normalizeMarker(marker string) string {
	return strings.Trim(strings.ReplaceAll(strings.TrimSpace(marker), "\\", "/"), "/")
}
