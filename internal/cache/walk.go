package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

func (s *fileStore) HasInstance(instance string) bool {
	root, err := s.instanceRoot(instance)
	if err != nil {
		return false
	}
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

func (s *fileStore) Enumerate(ctx context.Context, instance string, skip func(rel, name string) bool) ([]Entry, error) {
	root, err := s.instanceRoot(instance)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(filePath string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if filePath == root {
				return walkErr
			}
			// 单个条目读取失败不影响整体列表。
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if isStagingName(name) || !d.Type().IsRegular() {
			return nil
		}

		relNative, err := filepath.Rel(root, filePath)
		if err != nil {
			return nil
		}
		rel := filepath.ToSlash(relNative)
		if skip != nil && skip(rel, name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, Entry{
			Locator:   Locator{Instance: instance, Path: rel},
			FilePath:  filePath,
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *fileStore) Sweep(ctx context.Context, instance string, match func(rel, name string) bool) ([]string, error) {
	root, err := s.instanceRoot(instance)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var deleted []string
	err = s.sweepDir(ctx, root, "", match, &deleted)
	return deleted, err
}

// sweepDir 后序遍历：先处理子目录，再删除清理后为空的子目录。实例根目录本身保留。
func (s *fileStore) sweepDir(ctx context.Context, dir, rel string, match func(rel, name string) bool, deleted *[]string) error {
	items, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		full := filepath.Join(dir, item.Name())
		itemRel := item.Name()
		if rel != "" {
			itemRel = path.Join(rel, item.Name())
		}

		if item.IsDir() {
			if err := s.sweepDir(ctx, full, itemRel, match, deleted); err != nil {
				return err
			}
			if remaining, err := os.ReadDir(full); err == nil && len(remaining) == 0 {
				if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}
			continue
		}
		if match != nil && match(itemRel, item.Name()) {
			if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			*deleted = append(*deleted, itemRel)
		}
	}
	return nil
}

func isStagingName(name string) bool {
	return strings.HasPrefix(name, stagingPrefix) || strings.HasSuffix(name, fetchStagingSuffix)
}
