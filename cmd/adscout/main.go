package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/AdScout/internal/core"
	"github.com/RecoveryAshes/AdScout/internal/storage"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string
	noColor    bool

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 搜索参数
	keywords    string
	keywordFile string
	startDate   string
	endDate     string
	country     string
	mode        string
	replayDir   string
	domains     bool
	products    bool
	headless    bool
	timeout     time.Duration
	outputDir   string
	sqlitePath  string
	postgresDSN string
	progress    bool

	// 批量处理参数
	batchDelay      time.Duration
	continueOnError bool
)

// appConfig 在 PersistentPreRunE 中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "adscout",
	Short: "广告库搜索结果收集工具",
	Long: `AdScout - 广告库搜索结果收集与统计工具

对一组关键词打开广告库搜索页,持续滚动直到结果不再增长,并输出:
  • 广告条目 (标题、声明数量、规范化外链)
  • 按域名统计的广告数 (--domains, 对每个域名再做一次搜索)
  • 按产品链接累计的广告数 (--products)

中途出错时已收集的结果仍会保存,状态标记为 incomplete。

示例:
  # 单组关键词
  adscout -k "zapatillas running" --domains --products

  # 指定日期范围与国家
  adscout -k "zapatillas" --start-date 2024-3-1 --end-date 2024-3-31 --country MX

  # 批量处理 (每行一组关键词)
  adscout -f keywords.txt --batch-delay 30s

  # 携带登录Cookie
  adscout -k "zapatillas" -H "Cookie: c_user=...; xs=..."

  # 回放保存的HTML快照
  adscout -k "zapatillas" --mode replay --replay-dir ./snapshots

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		config.MergeCLIFlags(cliFlags(cmd))

		logConfig := config.LogConfig()
		logConfig.NoColor = noColor
		if verbose && logLevel == "" {
			logConfig.Level = "debug"
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		appConfig = config
		return nil
	},
	RunE: runSearch,
}

// cliFlags 只收集用户显式指定的参数
func cliFlags(cmd *cobra.Command) core.CLIFlags {
	f := core.CLIFlags{
		Keywords:    keywords,
		StartDate:   startDate,
		EndDate:     endDate,
		Country:     country,
		Mode:        mode,
		ReplayDir:   replayDir,
		OutputDir:   outputDir,
		SQLitePath:  sqlitePath,
		PostgresDSN: postgresDSN,
		LogLevel:    logLevel,
		Timeout:     timeout,
		BatchDelay:  batchDelay,
	}
	flags := cmd.Flags()
	if flags.Changed("domains") {
		f.Domains = &domains
	}
	if flags.Changed("products") {
		f.Products = &products
	}
	if flags.Changed("headless") {
		f.Headless = &headless
	}
	if flags.Changed("continue-on-error") {
		f.ContinueOnError = &continueOnError
	}
	return f
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	headerManager, err := core.NewHeaderManager(appConfig.Headers, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return printValidation(headerManager)
	}

	if appConfig.Search.Keywords == "" && keywordFile == "" {
		return cmd.Help()
	}

	if err := ValidateFlags(appConfig, keywordFile); err != nil {
		return err
	}
	if err := appConfig.Validate(); err != nil {
		return err
	}
	if _, err := headerManager.GetHeaders(); err != nil {
		return fmt.Errorf("请求头验证失败: %w", err)
	}
	if headerManager.HasSession() {
		utils.Info("🍪 使用会话Cookie")
	}

	sink, closeSink, err := openSinks(ctx, appConfig)
	if err != nil {
		return err
	}
	defer closeSink()

	app := core.NewApp(appConfig, headerManager, sink, progress)
	defer app.Close()

	if keywordFile != "" {
		list, err := utils.ReadKeywordsFromFile(keywordFile)
		if err != nil {
			return fmt.Errorf("读取关键词文件失败: %w", err)
		}

		batch := core.NewBatchRunner(app.RunKeywords, appConfig.Collect.BatchDelay, appConfig.Collect.ContinueOnError)
		summary := batch.RunBatch(ctx, list)
		if summary.FailCount > 0 {
			return fmt.Errorf("%d/%d 组关键词失败", summary.FailCount, summary.Total)
		}
		utils.Info("✨ 批量搜索完成!")
		return nil
	}

	if _, err := app.RunKeywords(ctx, appConfig.Search.Keywords); err != nil {
		if errors.Is(err, context.Canceled) {
			utils.Warn("收到中断信号,已保存部分结果")
		}
		return err
	}
	utils.Info("✨ 搜索完成!")
	return nil
}

// openSinks 文件报告总是启用,数据库按配置追加
func openSinks(ctx context.Context, config *core.Config) (core.Sink, func(), error) {
	sinks := core.MultiSink{utils.NewFileReporter(config.Output.BaseDir, config.Output.Markdown)}
	var closers []func() error

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				utils.Warnf("关闭存储失败: %v", err)
			}
		}
	}

	if config.Storage.SQLitePath != "" {
		store, err := storage.OpenSQLite(config.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
	}

	if config.Storage.PostgresDSN != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		store, err := storage.OpenPostgres(connectCtx, storage.PostgresConfig{DSN: config.Storage.PostgresDSN})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
	}

	if len(sinks) == 1 {
		return sinks[0], closeAll, nil
	}
	return sinks, closeAll, nil
}

// printValidation 显示合并后的请求头(脱敏)
func printValidation(hm *core.HeaderManager) error {
	utils.Info("🔍 验证配置...")
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("请求头验证失败: %w", err)
	}

	safeHeaders := hm.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("AdScout %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "控制台输出不带颜色")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 搜索参数
	rootCmd.Flags().StringVarP(&keywords, "keywords", "k", "", "搜索关键词 (也可通过 SEARCH_KEYWORDS 设置)")
	rootCmd.Flags().StringVarP(&keywordFile, "keyword-file", "f", "", "关键词列表文件,每行一组")
	rootCmd.Flags().StringVar(&startDate, "start-date", "", "开始日期 YYYY-M-D")
	rootCmd.Flags().StringVar(&endDate, "end-date", "", "结束日期 YYYY-M-D")
	rootCmd.Flags().StringVar(&country, "country", "", "投放国家代码 (默认 CL)")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "", "视图模式 (dynamic|static|replay)")
	rootCmd.Flags().StringVar(&replayDir, "replay-dir", "", "回放模式的HTML快照目录")
	rootCmd.Flags().BoolVar(&domains, "domains", false, "按域名统计广告数")
	rootCmd.Flags().BoolVar(&products, "products", false, "按产品链接累计广告数")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "单组关键词的运行超时 (默认 30m)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录")
	rootCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "同时写入SQLite数据库")
	rootCmd.Flags().StringVar(&postgresDSN, "postgres", "", "同时写入PostgreSQL (DSN)")
	rootCmd.Flags().BoolVar(&progress, "progress", true, "显示进度条")

	// 批量处理参数
	rootCmd.Flags().DurationVar(&batchDelay, "batch-delay", 0, "批量处理关键词间延迟 (默认 10s)")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
