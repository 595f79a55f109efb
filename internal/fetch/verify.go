package fetch

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrDigestMismatch 表示下载内容的摘要与文件名声明的摘要不一致。
var ErrDigestMismatch = errors.New("content digest mismatch")

// SHA1Verifier 返回一个校验函数，要求文件内容的 SHA-1 等于 expected（十六进制，忽略大小写）。
func SHA1Verifier(expected string) func(path string) error {
	want := strings.ToLower(strings.TrimSpace(expected))
	return func(path string) error {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		hasher := sha1.New()
		if _, err := io.Copy(hasher, file); err != nil {
			return err
		}
		got := hex.EncodeToString(hasher.Sum(nil))
		if got != want {
			return fmt.Errorf("%w: want %s, got %s", ErrDigestMismatch, want, got)
		}
		return nil
	}
}
