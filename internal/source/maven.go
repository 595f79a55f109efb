package source

import (
	"path"
	"strings"
)

// knownClassifiers 是构建产物文件名末尾常见的 maven classifier。
var knownClassifiers = []string{
	"installer", "universal", "client", "server", "launcher",
	"shim", "sources", "slim", "extra", "srg", "userdev",
}

// reconstructMavenPath 将 <token>-<version>[-<classifier>].<ext> 还原为
// <group>/<token>/<version>/<file>。
func reconstructMavenPath(loader Loader, fileName string) (string, bool) {
	token := strings.ToLower(loader.Token)
	lower := strings.ToLower(fileName)
	if token == "" || loader.Group == "" || !strings.HasPrefix(lower, token+"-") {
		return "", false
	}

	ext := path.Ext(fileName)
	if ext == "" {
		return "", false
	}
	version := fileName[len(token)+1 : len(fileName)-len(ext)]
	for _, classifier := range knownClassifiers {
		if strings.HasSuffix(strings.ToLower(version), "-"+classifier) {
			version = version[:len(version)-len(classifier)-1]
			break
		}
	}
	if version == "" || !safeSegment(version) {
		return "", false
	}

	artifact := fileName[:len(token)]
	return loader.Group + "/" + artifact + "/" + version + "/" + fileName, true
}
