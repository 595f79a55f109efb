// Package files 提供启动器使用的 HTTP 接口：实例清单、文件下载（支持单段 Range）、
// 资源对象检查/预取、临时文件清理与首页说明。所有文件解析委托给 engine 包。
package files
