package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/config"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("ASSET_HUB_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsDefaultPath(t *testing.T) {
	t.Setenv("ASSET_HUB_CONFIG", "")

	opts, err := parseCLIFlags([]string{"--check-config"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.toml" || !opts.checkOnly {
		t.Fatalf("默认路径或 check-config 解析错误: %+v", opts)
	}
	if _, err := parseCLIFlags([]string{"--unknown"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d: %s", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含失败原因")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "asset-hub") {
		t.Fatalf("version 输出应包含 asset-hub 标识")
	}
}

func TestBuildAppServesHealthAndListing(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "storage")
	cfg, err := config.Load(writeConfigFile(t, `
StoragePath = "`+filepath.ToSlash(storage)+`"

[[Instance]]
Name = "vanilla"
`))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app, eng, err := buildApp(cfg, logger)
	if err != nil {
		t.Fatalf("buildApp 失败: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	resp, err := app.Test(httptest.NewRequest("GET", "/-/health", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.Status != "ok" {
		t.Fatalf("health 响应异常: %v %+v", err, health)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/files?instance=vanilla", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("空实例清单应为 []，得到 %s", body)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/files/instances.json", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"vanilla"`)) {
		t.Fatalf("instances.json 应包含 vanilla，得到 %s", body)
	}
}
