package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/RecoveryAshes/AdScout/internal/core"
	"github.com/RecoveryAshes/AdScout/internal/crawlers"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  AdScout 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 动态模式需要本地Chromium;找不到时 go-rod 会在首次运行时下载
	if path, ok := launcher.LookPath(); ok {
		fmt.Printf("✅ 浏览器: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到本地Chrome/Chromium - 首次运行动态模式时将自动下载")
		fmt.Println("   也可在配置文件 browser.path 中指定")
	}

	// 配置文件
	fmt.Println()
	fmt.Println("检查配置...")
	config, err := core.LoadConfig("")
	if err != nil {
		fmt.Printf("❌ 配置加载失败: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Printf("❌ 配置验证失败: %v\n", err)
		allOK = false
	} else {
		fmt.Printf("✅ 配置有效 (模式: %s, 运行超时: %v)\n", config.Collect.Mode, config.Collect.RunTimeout)
	}

	if _, err := core.NewHeaderManager(config.Headers, nil); err != nil {
		fmt.Printf("❌ 请求头配置错误: %v\n", err)
		allOK = false
	}

	// 输出目录可写
	if err := checkWritable(config.Output.BaseDir); err != nil {
		fmt.Printf("❌ 输出目录不可写: %v\n", err)
		allOK = false
	} else {
		fmt.Printf("✅ 输出目录: %s\n", config.Output.BaseDir)
	}

	// 资源上限
	monitor := crawlers.NewResourceMonitor(config.ResourceMonitorConfig())
	fmt.Printf("✅ 域名探测并发上限: %d (请求 %d)\n",
		monitor.ProbeConcurrency(config.Analysis.ProbeConcurrency), config.Analysis.ProbeConcurrency)
	if ok, reason := monitor.CheckResourceAvailability(); !ok {
		fmt.Printf("⚠️  %s\n", reason)
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/adscout' 构建项目")
		fmt.Println("  2. 运行 './adscout --help' 查看帮助")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}

// checkWritable 在目录中创建并删除一个临时文件
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".adscout-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
