// Package fetch 负责单个上游 URL 的受限下载：独立超时、暂存文件、固定退避重试与体积校验。
// Fetcher 从不向调用方返回 error，只返回 Result；失败被吸收为 OK=false。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// StagingSuffix 是下载过程中暂存文件的后缀，成功后 rename 到目标路径。
const StagingSuffix = ".part"

var (
	// ErrUnexpectedStatus 表示上游返回了 200/206 以外的状态码。
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
	// ErrUndersized 表示下载体积未超过最小可用阈值，通常是截断或错误页。
	ErrUndersized = errors.New("body below minimum viable size")
)

// Options 控制一次 Fetch 的预算。
type Options struct {
	// Timeout 为单次尝试的超时；<=0 时只受 http.Client 自身超时约束。
	Timeout time.Duration
	// MaxRetries 为首次尝试之后的额外重试次数。
	MaxRetries int
	Backoff    time.Duration
	// MinSize 为最小可用体积，文件必须严格大于该值。
	MinSize int64
	// Verify 在 rename 前对暂存文件做额外校验，返回 error 视为本次尝试失败。
	Verify func(path string) error
}

// Result 汇总所有尝试的结果。
type Result struct {
	OK       bool
	Bytes    int64
	Attempts int
	// Status 为最后一次收到的 HTTP 状态码，网络错误时为 0。
	Status int
	// Err 为最后一次失败原因，OK=true 时为 nil。
	Err error
}

// Fetcher 复用共享 http.Client 执行下载。
type Fetcher struct {
	client *http.Client
	logger *logrus.Logger
}

// New 构建 Fetcher；client 为空时使用 http.DefaultClient。
func New(client *http.Client, logger *logrus.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch 将 url 下载到 dest。返回后暂存文件一定不存在；dest 要么不存在，要么体积大于 MinSize。
func (f *Fetcher) Fetch(ctx context.Context, url, dest string, opts Options) Result {
	staging := dest + StagingSuffix
	attempts := opts.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var res Result
	for res.Attempts < attempts {
		if res.Attempts > 0 && !wait(ctx, opts.Backoff) {
			res.Err = ctx.Err()
			break
		}
		res.Attempts++

		status, written, err := f.attempt(ctx, url, dest, staging, opts)
		res.Status = status
		if err == nil {
			res.OK = true
			res.Bytes = written
			res.Err = nil
			return res
		}
		res.Err = err

		f.logger.WithFields(logrus.Fields{
			"action":          "fetch",
			"upstream":        url,
			"upstream_status": status,
			"attempt":         res.Attempts,
			"max_attempts":    attempts,
		}).WithError(err).Warn("fetch_attempt_failed")
	}

	_ = os.Remove(staging)
	removeUndersized(dest, opts.MinSize)
	return res
}

func (f *Fetcher) attempt(ctx context.Context, url, dest, staging string, opts Options) (int, int64, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return resp.StatusCode, 0, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	written, err := stage(staging, resp.Body)
	if err == nil && written <= opts.MinSize {
		err = fmt.Errorf("%w: %d bytes", ErrUndersized, written)
	}
	if err == nil && opts.Verify != nil {
		err = opts.Verify(staging)
	}
	if err == nil {
		err = os.Rename(staging, dest)
	}
	if err != nil {
		_ = os.Remove(staging)
		return resp.StatusCode, 0, err
	}
	return resp.StatusCode, written, nil
}

func stage(staging string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(staging), 0o755); err != nil {
		return 0, err
	}
	file, err := os.OpenFile(staging, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(file, body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	return written, err
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func removeUndersized(dest string, minSize int64) {
	info, err := os.Stat(dest)
	if err != nil {
		return
	}
	if !info.IsDir() && info.Size() <= minSize {
		_ = os.Remove(dest)
	}
}
