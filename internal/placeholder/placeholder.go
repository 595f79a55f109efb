// Package placeholder 在所有上游均不可用时，为文件合成格式合法的最小内容。
// 结果只取决于文件扩展名与类别，重复调用得到完全相同的字节，避免缓存抖动。
package placeholder

import (
	"fmt"
	"path"
	"strings"

	"github.com/any-hub/asset-hub/internal/classify"
)

var (
	// dosHeader 是 64 字节的 DOS 头：MZ 魔数后补零。
	dosHeader = padded([]byte{'M', 'Z'}, 64)
	// elfIdent 是 ELF64 小端的 16 字节识别块。
	elfIdent = []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	// machOMagic 是 64 位 Mach-O 魔数（小端）。
	machOMagic = []byte{0xcf, 0xfa, 0xed, 0xfe}
	// emptyZip 是只包含中央目录结束记录的空 ZIP 包。
	emptyZip = padded([]byte{'P', 'K', 0x05, 0x06}, 22)
	// emptyGzip 是空内容的 gzip 流（mtime=0, OS=unknown）。
	emptyGzip = []byte{
		0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff,
		0x03, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	emptyJSON = []byte("{}")
	emptyXML  = []byte(`<?xml version="1.0" encoding="UTF-8"?><placeholder/>`)
)

// Synthesize 返回 fileName 对应的占位内容。返回值是新分配的切片，调用方可以自由修改。
func Synthesize(fileName string, category classify.Category) []byte {
	if category == classify.TemporaryOrIgnorable {
		return []byte{}
	}

	switch strings.ToLower(path.Ext(fileName)) {
	case ".dll", ".exe":
		return clone(dosHeader)
	case ".so":
		return clone(elfIdent)
	case ".dylib", ".jnilib":
		return clone(machOMagic)
	case ".jar", ".zip":
		return clone(emptyZip)
	case ".gz", ".tgz":
		return clone(emptyGzip)
	case ".json", ".mcmeta":
		return clone(emptyJSON)
	case ".xml", ".pom":
		return clone(emptyXML)
	}
	return []byte(fmt.Sprintf("placeholder: %s (%s)\n", fileName, category))
}

func padded(prefix []byte, size int) []byte {
	buf := make([]byte, size)
	copy(buf, prefix)
	return buf
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
