// Package engine 编排单个文件的解析流程：本地命中 → 分类 → 上游候选 → 占位合成，
// 并基于同一策略生成实例目录清单。同一路径的并发未命中请求只会触发一次解析。
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/asset-hub/internal/cache"
	"github.com/any-hub/asset-hub/internal/classify"
	"github.com/any-hub/asset-hub/internal/fetch"
	"github.com/any-hub/asset-hub/internal/logging"
	"github.com/any-hub/asset-hub/internal/metrics"
	"github.com/any-hub/asset-hub/internal/placeholder"
	"github.com/any-hub/asset-hub/internal/source"
)

// Source 描述一次解析结果的字节来源。
type Source string

const (
	SourceLocal       Source = "local"
	SourceShared      Source = "shared"
	SourceUpstream    Source = "upstream"
	SourcePlaceholder Source = "placeholder"
	// SourceEmpty 用于临时文件：返回空内容且不落盘。
	SourceEmpty Source = "empty"
)

// Options 汇总引擎的运行参数，通常由 config 构建。
type Options struct {
	// MinViableSize 为可用文件的最小体积（严格大于）。
	MinViableSize int64
	MaxRetries    int
	RetryBackoff  time.Duration
	// VerifyAssetHash 为 true 时校验资源对象内容的 SHA-1 与文件名一致。
	VerifyAssetHash bool

	ListingCacheTTL time.Duration
	// MaxMemoryCacheMB 限制清单缓存的内存上限，0 表示不限。
	MaxMemoryCacheMB    int
	PrefetchConcurrency int
	// PublicBaseURL 非空时覆盖清单中回指本服务的地址前缀。
	PublicBaseURL string
	// IgnorePatterns 按实例名给出清单中需要隐藏的 glob 规则。
	IgnorePatterns map[string][]string
}

// Result 描述一次成功解析。Entry 在 SourceEmpty 时为 nil。
type Result struct {
	Category classify.Category
	Source   Source
	Entry    *cache.Entry
	// Upstream 为命中的上游 URL，仅 SourceShared/SourceUpstream 时非空。
	Upstream string
}

// Stats 为进程内累计计数，供 /-/health 展示。
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Upstream     int64 `json:"upstream"`
	Placeholders int64 `json:"placeholders"`
	BytesWritten int64 `json:"bytes_written"`
}

// Engine 在多个 goroutine 间共享，所有依赖在构造后不再修改。
type Engine struct {
	store      cache.Store
	classifier *classify.Classifier
	resolver   *source.Resolver
	fetcher    *fetch.Fetcher
	logger     *logrus.Logger
	opts       Options

	// inflight 以 instance/path 去重解析，downloads 以上游 URL 去重下载。
	inflight  singleflight.Group
	downloads singleflight.Group

	listings *listingCache

	hits         atomic.Int64
	misses       atomic.Int64
	upstream     atomic.Int64
	placeholders atomic.Int64
	bytesWritten atomic.Int64
}

// New 组装引擎。classifier/resolver/fetcher 为空时使用默认配置。
func New(
	store cache.Store,
	classifier *classify.Classifier,
	resolver *source.Resolver,
	fetcher *fetch.Fetcher,
	logger *logrus.Logger,
	opts Options,
) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine requires a cache store")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if classifier == nil {
		classifier = classify.New(classify.DefaultRules())
	}
	if resolver == nil {
		resolver = source.NewResolver(source.DefaultEndpoints(), classifier)
	}
	if fetcher == nil {
		fetcher = fetch.New(nil, logger)
	}
	if opts.PrefetchConcurrency <= 0 {
		opts.PrefetchConcurrency = 4
	}

	listings, err := newListingCache(opts.ListingCacheTTL, opts.MaxMemoryCacheMB)
	if err != nil {
		return nil, fmt.Errorf("init listing cache: %w", err)
	}

	return &Engine{
		store:      store,
		classifier: classifier,
		resolver:   resolver,
		fetcher:    fetcher,
		logger:     logger,
		opts:       opts,
		listings:   listings,
	}, nil
}

// Close 释放清单缓存。
func (e *Engine) Close() error {
	return e.listings.close()
}

// Classifier 返回引擎使用的分类器。
func (e *Engine) Classifier() *classify.Classifier {
	return e.classifier
}

// Stats 返回计数快照。
func (e *Engine) Stats() Stats {
	return Stats{
		Hits:         e.hits.Load(),
		Misses:       e.misses.Load(),
		Upstream:     e.upstream.Load(),
		Placeholders: e.placeholders.Load(),
		BytesWritten: e.bytesWritten.Load(),
	}
}

// Resolve 返回 instance 下 relativePath 对应的文件。
// 返回的 error 可能是 ErrMalformedPath、*NotFoundError 或本地 I/O 错误。
func (e *Engine) Resolve(ctx context.Context, instance, relativePath string) (*Result, error) {
	started := time.Now()
	locator, err := e.locate(instance, relativePath)
	if err != nil {
		return nil, err
	}
	name := path.Base(locator.Path)
	category := e.classifier.Classify(locator.Path, name)

	// 客户端断开不应中止解析，结果对后续请求仍然有用。
	detached := context.WithoutCancel(ctx)
	if entry, err := e.lookup(detached, locator); err != nil {
		return nil, err
	} else if entry != nil {
		e.hits.Add(1)
		result := &Result{Category: category, Source: SourceLocal, Entry: entry}
		e.finish(locator, result, started, nil)
		return result, nil
	}
	e.misses.Add(1)

	key := locator.Instance + "/" + locator.Path
	value, err, _ := e.inflight.Do(key, func() (any, error) {
		return e.resolveMiss(detached, locator, name, category)
	})
	if err != nil {
		e.finish(locator, &Result{Category: category}, started, err)
		return nil, err
	}
	result := value.(*Result)
	e.finish(locator, result, started, nil)
	return result, nil
}

// Open 打开解析结果对应的本地文件。
func (e *Engine) Open(ctx context.Context, result *Result) (*cache.ReadResult, error) {
	if result == nil || result.Entry == nil {
		return nil, cache.ErrNotFound
	}
	return e.store.Get(ctx, result.Entry.Locator)
}

func (e *Engine) resolveMiss(ctx context.Context, locator cache.Locator, name string, category classify.Category) (*Result, error) {
	// 等待期间其他请求可能已经写入。
	if entry, err := e.lookup(ctx, locator); err != nil {
		return nil, err
	} else if entry != nil {
		return &Result{Category: category, Source: SourceLocal, Entry: entry}, nil
	}

	profile := classify.Lookup(category)
	if !profile.Cacheable {
		// 不落盘的类别只服务本地已有文件；临时文件以空内容应答。
		if category == classify.TemporaryOrIgnorable {
			return &Result{Category: category, Source: SourceEmpty}, nil
		}
		return nil, &NotFoundError{
			Instance: locator.Instance,
			Path:     locator.Path,
			Reason:   fmt.Sprintf("%s files are served only from the local store", category),
		}
	}

	if profile.AllowUpstream {
		for _, candidate := range e.resolver.Resolve(locator.Path, name, category) {
			result, err := e.tryCandidate(ctx, locator, name, category, candidate)
			if err != nil {
				return nil, err
			}
			if result != nil {
				return result, nil
			}
		}
	}

	if !profile.AllowPlaceholder {
		return nil, &NotFoundError{
			Instance: locator.Instance,
			Path:     locator.Path,
			Reason:   fmt.Sprintf("no local copy and no upstream rule for %s files", category),
		}
	}
	return e.synthesize(ctx, locator, name, category)
}

// tryCandidate 通过共享键空间获取 candidate，成功后导入实例目录。
// 上游失败返回 (nil, nil)，只有本地 I/O 错误才返回 error。
func (e *Engine) tryCandidate(
	ctx context.Context,
	locator cache.Locator,
	name string,
	category classify.Category,
	candidate source.Candidate,
) (*Result, error) {
	sharedPath, ok := e.store.ValidShared(candidate.URL, e.opts.MinViableSize)
	src := SourceShared
	if !ok {
		value, _, _ := e.downloads.Do("url:"+candidate.URL, func() (any, error) {
			if _, ok := e.store.ValidShared(candidate.URL, e.opts.MinViableSize); ok {
				return fetch.Result{OK: true}, nil
			}
			res := e.fetcher.Fetch(ctx, candidate.URL, sharedPath, e.fetchOptions(candidate, category, name))
			metrics.RecordUpstreamFetch(res.Bytes, res.OK)
			return res, nil
		})
		res := value.(fetch.Result)
		if !res.OK {
			e.logger.WithFields(logrus.Fields{
				"action":          "fetch",
				"instance":        locator.Instance,
				"path":            locator.Path,
				"upstream":        candidate.URL,
				"rank":            candidate.Rank,
				"attempts":        res.Attempts,
				"upstream_status": res.Status,
			}).WithError(res.Err).Warn("candidate_failed")
			return nil, nil
		}
		src = SourceUpstream
		e.bytesWritten.Add(res.Bytes)
	}

	entry, err := e.store.Import(ctx, locator, sharedPath)
	if err != nil {
		return nil, fmt.Errorf("import %s into %s/%s: %w", candidate.URL, locator.Instance, locator.Path, err)
	}
	e.upstream.Add(1)
	e.listings.invalidate(locator.Instance)
	return &Result{Category: category, Source: src, Entry: entry, Upstream: candidate.URL}, nil
}

func (e *Engine) synthesize(ctx context.Context, locator cache.Locator, name string, category classify.Category) (*Result, error) {
	body := placeholder.Synthesize(name, category)
	entry, err := e.store.Put(ctx, locator, bytes.NewReader(body), cache.PutOptions{})
	if err != nil {
		return nil, fmt.Errorf("write placeholder %s/%s: %w", locator.Instance, locator.Path, err)
	}
	e.placeholders.Add(1)
	e.bytesWritten.Add(entry.SizeBytes)
	e.listings.invalidate(locator.Instance)
	return &Result{Category: category, Source: SourcePlaceholder, Entry: entry}, nil
}

func (e *Engine) fetchOptions(candidate source.Candidate, category classify.Category, name string) fetch.Options {
	opts := fetch.Options{
		Timeout:    candidate.Timeout,
		MaxRetries: e.opts.MaxRetries,
		Backoff:    e.opts.RetryBackoff,
		MinSize:    e.opts.MinViableSize,
	}
	if e.opts.VerifyAssetHash && category == classify.ContentAsset {
		opts.Verify = fetch.SHA1Verifier(name)
	}
	return opts
}

// lookup 返回本地条目；不存在时返回 (nil, nil)。
func (e *Engine) lookup(ctx context.Context, locator cache.Locator) (*cache.Entry, error) {
	result, err := e.store.Get(ctx, locator)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", locator.Instance, locator.Path, err)
	}
	result.Reader.Close()
	entry := result.Entry
	return &entry, nil
}

func (e *Engine) locate(instance, relativePath string) (cache.Locator, error) {
	if !cache.ValidInstanceName(instance) {
		return cache.Locator{}, fmt.Errorf("%w: invalid instance name %q", ErrMalformedPath, instance)
	}
	rel, err := cache.CleanRelativePath(relativePath)
	if err != nil {
		return cache.Locator{}, fmt.Errorf("%w: %v", ErrMalformedPath, err)
	}
	return cache.Locator{Instance: instance, Path: rel}, nil
}

func (e *Engine) finish(locator cache.Locator, result *Result, started time.Time, err error) {
	elapsed := time.Since(started)
	fields := logging.RequestFields(locator.Instance, string(result.Category), string(result.Source), result.Source == SourceLocal)
	fields["action"] = "resolve"
	fields["path"] = locator.Path
	fields["elapsed_ms"] = elapsed.Milliseconds()
	if result.Upstream != "" {
		fields["upstream"] = result.Upstream
	}
	if err != nil {
		if IsNotFound(err) {
			metrics.RecordResolution(string(result.Category), "not_found", elapsed)
			e.logger.WithFields(fields).WithError(err).Info("resolve_not_found")
			return
		}
		metrics.RecordResolution(string(result.Category), "error", elapsed)
		e.logger.WithFields(fields).WithError(err).Error("resolve_failed")
		return
	}
	metrics.RecordResolution(string(result.Category), string(result.Source), elapsed)
	e.logger.WithFields(fields).Debug("resolve_complete")
}
