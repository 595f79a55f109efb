package cache

import (
	"fmt"
	"regexp"
	"strings"
)

var instanceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidInstanceName 判断实例名是否可以安全地作为目录名使用。
func ValidInstanceName(name string) bool {
	return instanceNamePattern.MatchString(name)
}

// CleanRelativePath 将请求路径规范化为正斜杠相对路径。
// 含 NUL、绝对路径、盘符或 ".." 段的输入返回 ErrInvalidPath。
func CleanRelativePath(raw string) (string, error) {
	if strings.ContainsRune(raw, 0) {
		return "", fmt.Errorf("%w: NUL byte", ErrInvalidPath)
	}
	p := strings.ReplaceAll(raw, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrInvalidPath, raw)
	}
	if len(p) >= 2 && p[1] == ':' {
		return "", fmt.Errorf("%w: volume path %q", ErrInvalidPath, raw)
	}

	segments := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("%w: traversal in %q", ErrInvalidPath, raw)
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return strings.Join(segments, "/"), nil
}
