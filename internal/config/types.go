package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有实例共享同一份参数。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	StoragePath   string `mapstructure:"StoragePath"`
	// PublicBaseURL 覆盖清单中回指本服务的地址，部署在反向代理之后时使用。
	PublicBaseURL   string   `mapstructure:"PublicBaseURL"`
	MaxRetries      int      `mapstructure:"MaxRetries"`
	RetryBackoff    Duration `mapstructure:"RetryBackoff"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	// MinViableSize 为可用文件的最小字节数，下载体积必须严格大于该值。
	MinViableSize   int64 `mapstructure:"MinViableSize"`
	VerifyAssetHash bool  `mapstructure:"VerifyAssetHash"`
	// ListingCacheTTL 为 0 时每次请求都重新扫描实例目录；大于 0 时清单可能滞后于磁盘上的外部改动。
	ListingCacheTTL Duration `mapstructure:"ListingCacheTTL"`
	// MaxMemoryCache 单位为 MB，限制清单缓存的内存占用。
	MaxMemoryCache      int `mapstructure:"MaxMemoryCacheSize"`
	PrefetchConcurrency int `mapstructure:"PrefetchConcurrency"`
}

// UpstreamConfig 描述官方 CDN、库镜像、通用 maven 仓库与版本描述模板。
type UpstreamConfig struct {
	AssetBaseURL    string `mapstructure:"AssetBaseURL"`
	LibraryBaseURL  string `mapstructure:"LibraryBaseURL"`
	ArtifactBaseURL string `mapstructure:"ArtifactBaseURL"`
	VersionTemplate string `mapstructure:"VersionTemplate"`
}

// MarkersConfig 描述分类所用的目录标记；未配置时取默认值，显式写成空串可关闭对应规则。
type MarkersConfig struct {
	AssetsObjects string `mapstructure:"AssetsObjects"`
	Libraries     string `mapstructure:"Libraries"`
	Versions      string `mapstructure:"Versions"`
	Natives       string `mapstructure:"Natives"`
}

// MirrorConfig 将 maven 路径前缀映射到厂商镜像。
type MirrorConfig struct {
	Prefix  string   `mapstructure:"Prefix"`
	BaseURL string   `mapstructure:"BaseURL"`
	Timeout Duration `mapstructure:"Timeout"`
}

// LoaderConfig 描述一个构建工具的文件名标识、maven group 与产物仓库。
type LoaderConfig struct {
	Token   string `mapstructure:"Token"`
	Group   string `mapstructure:"Group"`
	BaseURL string `mapstructure:"BaseURL"`
}

// InstanceConfig 是 /files/instances.json 暴露的实例元数据。
type InstanceConfig struct {
	Name           string   `mapstructure:"Name" json:"name"`
	Loader         string   `mapstructure:"Loader" json:"loader,omitempty"`
	LoaderVersion  string   `mapstructure:"LoaderVersion" json:"loader_version,omitempty"`
	IgnorePatterns []string `mapstructure:"IgnorePatterns" json:"ignore_patterns"`
	AllowList      []string `mapstructure:"AllowList" json:"allow_list"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig     `mapstructure:",squash"`
	Upstream  UpstreamConfig   `mapstructure:"Upstream"`
	Markers   MarkersConfig    `mapstructure:"Markers"`
	Mirrors   []MirrorConfig   `mapstructure:"Mirror"`
	Loaders   []LoaderConfig   `mapstructure:"Loader"`
	Instances []InstanceConfig `mapstructure:"Instance"`
}

// InstanceNames 返回已配置实例的名称列表，供启动日志使用。
func InstanceNames(instances []InstanceConfig) []string {
	if len(instances) == 0 {
		return nil
	}
	result := make([]string, len(instances))
	for i, inst := range instances {
		result[i] = inst.Name
	}
	return result
}
