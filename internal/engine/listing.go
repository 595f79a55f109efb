package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/cache"
	"github.com/any-hub/asset-hub/internal/classify"
	"github.com/any-hub/asset-hub/internal/metrics"
)

// FileEntry 是清单中的一条记录。
type FileEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	// Source 为 "remote"（URL 指向真实上游）或 "local"（URL 指回本服务）。
	Source string `json:"source"`
	Hash   string `json:"hash,omitempty"`
}

const (
	EntrySourceLocal  = "local"
	EntrySourceRemote = "remote"
)

// List 生成实例清单。实例名非法或目录不存在时直接返回空列表，不写入缓存与指标；
// 扫描失败时返回空列表与 error，调用方据此返回 500。
func (e *Engine) List(ctx context.Context, instance, baseURL string) ([]FileEntry, error) {
	if !cache.ValidInstanceName(instance) || !e.store.HasInstance(instance) {
		return []FileEntry{}, nil
	}
	base := strings.TrimRight(e.opts.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(baseURL, "/")
	}

	generation := e.listings.generation(instance)
	if cached, ok := e.listings.get(instance, generation, base); ok {
		return cached, nil
	}

	started := time.Now()
	entries, err := e.store.Enumerate(ctx, instance, func(rel, name string) bool {
		return e.classifier.Classify(rel, name) == classify.TemporaryOrIgnorable || e.ignored(instance, rel, name)
	})
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"action":   "listing",
			"instance": instance,
		}).WithError(err).Error("listing_failed")
		return []FileEntry{}, fmt.Errorf("enumerate %s: %w", instance, err)
	}

	list := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.SizeBytes == 0 && inNativeHolder(entry.Locator.Path) {
			continue
		}
		list = append(list, e.fileEntry(instance, base, entry))
	}

	e.listings.put(instance, generation, base, list)
	metrics.SetListingEntries(instance, len(list))
	e.logger.WithFields(logrus.Fields{
		"action":     "listing",
		"instance":   instance,
		"entries":    len(list),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Info("listing_complete")
	return list, nil
}

func (e *Engine) fileEntry(instance, base string, entry cache.Entry) FileEntry {
	rel := entry.Locator.Path
	name := path.Base(rel)
	item := FileEntry{
		Name:     name,
		Path:     rel,
		Size:     entry.SizeBytes,
		Modified: entry.ModTime.UTC().Format(time.RFC3339),
		Type:     "file",
	}
	if classify.IsAssetHash(name) {
		item.Hash = name
	}

	category := e.classifier.Classify(rel, name)
	if candidates := e.resolver.Resolve(rel, name, category); len(candidates) > 0 {
		item.URL = candidates[0].URL
		item.Source = EntrySourceRemote
		return item
	}
	item.URL = DownloadURL(base, instance, rel)
	item.Source = EntrySourceLocal
	return item
}

// DownloadURL 拼接本服务的下载地址，逐段转义相对路径。
func DownloadURL(base, instance, rel string) string {
	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/files/instances/" + url.PathEscape(instance) + "/" + strings.Join(segments, "/")
}

// inNativeHolder 判断路径是否位于原生库解压目录下；其中的空文件视为缺失，不出现在清单中。
func inNativeHolder(rel string) bool {
	dirs := strings.Split(path.Dir(rel), "/")
	for _, dir := range dirs {
		if classify.IsNativeHolder(dir) {
			return true
		}
	}
	return false
}

// ignored 按实例的 IgnorePatterns 过滤：以 "/" 结尾的规则按目录前缀匹配，其余按 glob 匹配路径或文件名。
func (e *Engine) ignored(instance, rel, name string) bool {
	for _, pattern := range e.opts.IgnorePatterns[instance] {
		if strings.HasSuffix(pattern, "/") {
			if strings.HasPrefix(rel, pattern) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// listingCache 以 bigcache 缓存序列化后的清单。实例每次写入都会递增代数，
// 旧代数的条目不再被读取并随 TTL 淘汰。外部直接改动磁盘不会递增代数，
// 因此 TTL 内的清单可能滞后，ttl<=0 时完全关闭缓存。
type listingCache struct {
	cache       *bigcache.BigCache
	generations sync.Map // instance -> *atomic.Uint64
}

func newListingCache(ttl time.Duration, maxMemoryMB int) (*listingCache, error) {
	lc := &listingCache{}
	if ttl <= 0 {
		return lc, nil
	}

	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = 256
	cfg.MaxEntrySize = 16 * 1024
	cfg.CleanWindow = ttl
	cfg.HardMaxCacheSize = maxMemoryMB
	cfg.Verbose = false

	bc, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.cache = bc
	return lc, nil
}

// generation 只读取代数，未写入过的实例不会在 generations 中留下记录。
func (lc *listingCache) generation(instance string) uint64 {
	if lc.cache == nil {
		return 0
	}
	counter, ok := lc.generations.Load(instance)
	if !ok {
		return 0
	}
	return counter.(*atomic.Uint64).Load()
}

func (lc *listingCache) invalidate(instance string) {
	if lc.cache == nil {
		return
	}
	counter, _ := lc.generations.LoadOrStore(instance, new(atomic.Uint64))
	counter.(*atomic.Uint64).Add(1)
}

func (lc *listingCache) get(instance string, generation uint64, base string) ([]FileEntry, bool) {
	if lc.cache == nil {
		return nil, false
	}
	raw, err := lc.cache.Get(listingKey(instance, generation, base))
	if err != nil {
		return nil, false
	}
	var list []FileEntry
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

func (lc *listingCache) put(instance string, generation uint64, base string, list []FileEntry) {
	if lc.cache == nil {
		return
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	// 超出容量时放弃缓存，下次请求重新扫描。
	_ = lc.cache.Set(listingKey(instance, generation, base), raw)
}

func (lc *listingCache) close() error {
	if lc.cache == nil {
		return nil
	}
	return lc.cache.Close()
}

func listingKey(instance string, generation uint64, base string) string {
	return fmt.Sprintf("%s#%d#%s", instance, generation, base)
}
