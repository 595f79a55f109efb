package engine

import (
	"errors"
	"fmt"
)

// ErrMalformedPath 表示实例名或相对路径不合法，请求在触达文件系统前即被拒绝。
var ErrMalformedPath = errors.New("malformed request path")

// NotFoundError 表示无本地副本且没有任何上游或占位规则适用。
type NotFoundError struct {
	Instance string
	Path     string
	Reason   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s not found: %s", e.Instance, e.Path, e.Reason)
}

// IsNotFound 判断 err 链中是否包含 NotFoundError。
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
