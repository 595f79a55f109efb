// Package classify 将实例内的相对路径映射为语义类别（资源对象、共享库、构建产物、
// 版本描述、原生库、临时文件、未知），并维护每个类别的服务策略（Profile）。
//
// 分类是纯函数：不访问磁盘或网络，同一输入总是得到同一类别。规则按固定顺序匹配，
// 命中第一条即返回；各规则依赖的目录标记来自启动时构建的 Rules 值。
package classify
