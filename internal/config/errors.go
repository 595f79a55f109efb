package config

import "fmt"

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// newFieldError 创建包含字段路径与原因的 error，便于 CLI 定位。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// tableField 拼接数组表字段路径，输出 Instance[xxx].Field 形式；name 为空时使用序号。
func tableField(table, name string, idx int, field string) string {
	if name == "" {
		return fmt.Sprintf("%s[#%d].%s", table, idx, field)
	}
	return fmt.Sprintf("%s[%s].%s", table, name, field)
}
