package engine

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/any-hub/asset-hub/internal/classify"
)

// 预取结果状态。
const (
	PrefetchPresent     = "present"
	PrefetchDownloaded  = "downloaded"
	PrefetchPlaceholder = "placeholder"
	PrefetchFailed      = "failed"
	PrefetchInvalid     = "invalid"
)

// PrefetchResult 描述单个资源对象的预取结果。
type PrefetchResult struct {
	Asset  string `json:"asset"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// AssetStatus 描述资源对象在本地的存在情况及其源地址。
type AssetStatus struct {
	Hash          string `json:"hash"`
	Instance      string `json:"instance"`
	ExistsLocally bool   `json:"exists_locally"`
	Size          int64  `json:"size"`
	Path          string `json:"path"`
	OriginURL     string `json:"origin_url,omitempty"`
}

// AssetPath 返回资源对象在实例内的相对路径：<assets/objects>/<hash[:2]>/<hash>。
func (e *Engine) AssetPath(hash string) string {
	marker := e.classifier.Rules().AssetsObjects
	if marker == "" {
		marker = classify.DefaultRules().AssetsObjects
	}
	return path.Join(marker, hash[:2], hash)
}

// Prefetch 以受限并发解析一组资源对象，结果顺序与输入一致。
func (e *Engine) Prefetch(ctx context.Context, instance string, hashes []string) ([]PrefetchResult, error) {
	if _, err := e.locate(instance, "prefetch"); err != nil {
		return nil, err
	}

	started := time.Now()
	results := make([]PrefetchResult, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.PrefetchConcurrency)

	for i, raw := range hashes {
		hash := strings.ToLower(strings.TrimSpace(raw))
		results[i] = PrefetchResult{Asset: hash}
		if !classify.IsAssetHash(hash) {
			results[i].Status = PrefetchInvalid
			continue
		}
		g.Go(func() error {
			results[i] = e.prefetchOne(gctx, instance, hash)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"action":     "prefetch",
		"instance":   instance,
		"assets":     len(hashes),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Info("prefetch_complete")
	return results, nil
}

func (e *Engine) prefetchOne(ctx context.Context, instance, hash string) PrefetchResult {
	result, err := e.Resolve(ctx, instance, e.AssetPath(hash))
	if err != nil {
		return PrefetchResult{Asset: hash, Status: PrefetchFailed, Error: err.Error()}
	}
	switch result.Source {
	case SourceLocal:
		return PrefetchResult{Asset: hash, Status: PrefetchPresent}
	case SourceShared, SourceUpstream:
		return PrefetchResult{Asset: hash, Status: PrefetchDownloaded}
	case SourcePlaceholder:
		return PrefetchResult{Asset: hash, Status: PrefetchPlaceholder}
	default:
		return PrefetchResult{Asset: hash, Status: PrefetchFailed}
	}
}

// CheckAsset 报告资源对象是否已在本地，并给出其源地址；不会触发下载。
func (e *Engine) CheckAsset(ctx context.Context, instance, hash string) (*AssetStatus, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !classify.IsAssetHash(hash) {
		return nil, fmt.Errorf("%w: %q is not an asset hash", ErrMalformedPath, hash)
	}
	locator, err := e.locate(instance, e.AssetPath(hash))
	if err != nil {
		return nil, err
	}

	status := &AssetStatus{Hash: hash, Instance: instance, Path: locator.Path}
	if candidates := e.resolver.Resolve(locator.Path, hash, classify.ContentAsset); len(candidates) > 0 {
		status.OriginURL = candidates[0].URL
	}
	entry, err := e.lookup(ctx, locator)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		status.ExistsLocally = true
		status.Size = entry.SizeBytes
	}
	return status, nil
}

// CleanTemporary 删除实例中的临时文件及清理后留下的空目录，返回被删除文件的相对路径。
func (e *Engine) CleanTemporary(ctx context.Context, instance string) ([]string, error) {
	if _, err := e.locate(instance, "clean"); err != nil {
		return nil, err
	}
	deleted, err := e.store.Sweep(ctx, instance, func(rel, name string) bool {
		return classify.IsTemporary(name)
	})
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", instance, err)
	}
	if deleted == nil {
		deleted = []string{}
	}
	e.listings.invalidate(instance)
	e.logger.WithFields(logrus.Fields{
		"action":   "clean_temp",
		"instance": instance,
		"deleted":  len(deleted),
	}).Info("clean_temp_complete")
	return deleted, nil
}
