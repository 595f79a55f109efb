package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<StoragePath>/instances/<Instance>/<path>   # 实例文件
//	<StoragePath>/cache/<sha256(url)>           # 跨实例共享下载
//
// 条目仅由正文文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Get 返回一个可流式读取的缓存条目。文件缺失、为目录或为 0 字节时返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Put 将内容写入实例目录。实现需通过临时文件 + rename 保证写入原子性，
	// 无条件覆盖旧条目，并在失败时清理临时文件。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)

	// Import 将共享缓存中的文件（硬链接，失败时复制）原子地放入实例目录。
	Import(ctx context.Context, locator Locator, srcPath string) (*Entry, error)

	// Remove 删除正文文件，不存在时视为成功。
	Remove(ctx context.Context, locator Locator) error

	// SharedPath 返回 url 在共享键空间中的绝对路径。
	SharedPath(url string) string

	// ValidShared 判断共享条目是否可用；体积不超过 minSize 的条目会被立即删除。
	ValidShared(url string, minSize int64) (string, bool)

	// HasInstance 判断实例目录是否存在；名称非法时返回 false。
	HasInstance(instance string) bool

	// Enumerate 深度优先遍历实例目录，返回所有普通文件；skip 返回 true 的文件被跳过。
	// 实例目录不存在时返回空列表。
	Enumerate(ctx context.Context, instance string, skip func(rel, name string) bool) ([]Entry, error)

	// Sweep 删除 match 命中的文件以及清理后留下的空目录，返回被删除文件的相对路径。
	Sweep(ctx context.Context, instance string, match func(rel, name string) bool) ([]string, error)
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Locator 唯一定位一个实例文件（Instance + 相对路径），路径均为正斜杠风格。
type Locator struct {
	Instance string
	Path     string
}

// Entry 表示一次缓存命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Locator   Locator `json:"locator"`
	FilePath  string  `json:"file_path"`
	SizeBytes int64   `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于 HTTP 层直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidPath 表示实例名或相对路径不合法（越界、绝对路径、NUL 等），未触达文件系统。
	ErrInvalidPath = errors.New("invalid cache path")
)
