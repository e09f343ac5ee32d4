package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/RecoveryAshes/AdScout/internal/crawlers"
	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// AppName 配置目录名
const AppName = "adscout"

// Config 应用程序配置
type Config struct {
	Search   SearchSection     `mapstructure:"search"`
	Analysis AnalysisSection   `mapstructure:"analysis"`
	Collect  CollectSection    `mapstructure:"collect"`
	Browser  BrowserSection    `mapstructure:"browser"`
	Headers  map[string]string `mapstructure:"headers"`
	Filter   FilterSection     `mapstructure:"filter"`
	Output   OutputSection     `mapstructure:"output"`
	Storage  StorageSection    `mapstructure:"storage"`
	Resource ResourceSection   `mapstructure:"resource"`
	Logging  LoggingConfig     `mapstructure:"logging"`
}

// SearchSection 搜索参数
type SearchSection struct {
	Keywords  string `mapstructure:"keywords"`
	StartDate string `mapstructure:"start_date"`
	EndDate   string `mapstructure:"end_date"`
	Country   string `mapstructure:"country"`
	BaseURL   string `mapstructure:"base_url"`
}

// AnalysisSection 聚合开关与域名探测参数
type AnalysisSection struct {
	Domains          bool          `mapstructure:"domains"`
	Products         bool          `mapstructure:"products"`
	ProbeConcurrency int           `mapstructure:"probe_concurrency"`
	ProbeRate        float64       `mapstructure:"probe_rate"` // 每秒探测数
	ProbeGridTimeout time.Duration `mapstructure:"probe_grid_timeout"`
}

// CollectSection 收集循环参数
type CollectSection struct {
	Mode                string        `mapstructure:"mode"`
	ReplayDir           string        `mapstructure:"replay_dir"`
	StagnationThreshold int           `mapstructure:"stagnation_threshold"`
	InitialDelayMin     time.Duration `mapstructure:"initial_delay_min"`
	InitialDelayMax     time.Duration `mapstructure:"initial_delay_max"`
	AdvanceDelayMin     time.Duration `mapstructure:"advance_delay_min"`
	AdvanceDelayMax     time.Duration `mapstructure:"advance_delay_max"`
	GridTimeout         time.Duration `mapstructure:"grid_timeout"`
	SettleTimeout       time.Duration `mapstructure:"settle_timeout"`
	ScrollMin           int           `mapstructure:"scroll_min"`
	ScrollMax           int           `mapstructure:"scroll_max"`
	RunTimeout          time.Duration `mapstructure:"run_timeout"`
	SaveTimeout         time.Duration `mapstructure:"save_timeout"`
	GridSelector        string        `mapstructure:"grid_selector"`
	NextSelector        string        `mapstructure:"next_selector"`
	BatchDelay          time.Duration `mapstructure:"batch_delay"`
	ContinueOnError     bool          `mapstructure:"continue_on_error"`
}

// BrowserSection 浏览器配置
type BrowserSection struct {
	Headless    bool   `mapstructure:"headless"`
	Path        string `mapstructure:"path"`
	UserDataDir string `mapstructure:"user_data_dir"`
	Insecure    bool   `mapstructure:"insecure"`
}

// FilterSection 链接过滤的扩展项,追加在内置列表之后
type FilterSection struct {
	ExcludedDomains  []string        `mapstructure:"excluded_domains"`
	TrackingParams   []string        `mapstructure:"tracking_params"`
	RedirectWrappers []WrapperConfig `mapstructure:"redirect_wrappers"`
}

// WrapperConfig 跳转包装
type WrapperConfig struct {
	Host  string `mapstructure:"host"`
	Path  string `mapstructure:"path"`
	Param string `mapstructure:"param"`
}

// OutputSection 输出配置
type OutputSection struct {
	BaseDir  string `mapstructure:"base_dir"`
	Markdown bool   `mapstructure:"markdown"`
}

// StorageSection 额外的持久化目标,留空则不启用
type StorageSection struct {
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ResourceSection 资源限制 (MB)
type ResourceSection struct {
	SafetyReserveMemory int `mapstructure:"safety_reserve_memory"`
	SafetyThreshold     int `mapstructure:"safety_threshold"`
	CPULoadThreshold    int `mapstructure:"cpu_load_threshold"`
	MaxTabsLimit        int `mapstructure:"max_tabs_limit"`
	TabMemoryUsage      int `mapstructure:"tab_memory_usage"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// envBindings 沿用的环境变量名
var envBindings = map[string]string{
	"search.keywords":   "SEARCH_KEYWORDS",
	"analysis.domains":  "ANALYZE_DOMAINS",
	"analysis.products": "ANALYZE_PRODUCTS",
	"search.start_date": "ADS_START_DATE",
	"search.end_date":   "ADS_END_DATE",
}

// LoadConfig 加载配置文件,文件不存在时使用默认值
// 环境变量覆盖配置文件: 上面的旧变量名,以及 ADSCOUT_<SECTION>_<KEY>
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+AppName))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix("ADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		// 旧变量名优先,其次 ADSCOUT_ 前缀
		if err := v.BindEnv(key, env, "ADSCOUT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, &models.ConfigError{Field: key, Cause: err}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			field := configPath
			if field == "" {
				field = "config"
			}
			return nil, &models.ConfigError{Field: field, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{Field: "config", Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}
	// 环境变量中的列表是逗号分隔的一个字符串
	config.Filter.ExcludedDomains = splitListValues(config.Filter.ExcludedDomains)
	config.Filter.TrackingParams = splitListValues(config.Filter.TrackingParams)

	return &config, nil
}

func splitListValues(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, utils.SplitList(v)...)
	}
	return out
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("search.keywords", "")
	v.SetDefault("search.start_date", "")
	v.SetDefault("search.end_date", "")
	v.SetDefault("search.country", models.DefaultCountry)
	v.SetDefault("search.base_url", models.DefaultBaseSearchURL)

	v.SetDefault("analysis.domains", false)
	v.SetDefault("analysis.products", false)
	v.SetDefault("analysis.probe_concurrency", 2)
	v.SetDefault("analysis.probe_rate", 1.0)
	v.SetDefault("analysis.probe_grid_timeout", "15s")

	v.SetDefault("collect.mode", string(models.ModeDynamic))
	v.SetDefault("collect.replay_dir", "")
	v.SetDefault("collect.stagnation_threshold", 3)
	v.SetDefault("collect.initial_delay_min", "2s")
	v.SetDefault("collect.initial_delay_max", "3s")
	v.SetDefault("collect.advance_delay_min", "500ms")
	v.SetDefault("collect.advance_delay_max", "1s")
	v.SetDefault("collect.grid_timeout", "30s")
	v.SetDefault("collect.settle_timeout", "5s")
	v.SetDefault("collect.scroll_min", 800)
	v.SetDefault("collect.scroll_max", 1200)
	v.SetDefault("collect.run_timeout", "30m")
	v.SetDefault("collect.save_timeout", "30s")
	v.SetDefault("collect.grid_selector", crawlers.DefaultGridSelector)
	v.SetDefault("collect.next_selector", crawlers.DefaultNextSelector)
	v.SetDefault("collect.batch_delay", "10s")
	v.SetDefault("collect.continue_on_error", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.path", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.insecure", false)

	v.SetDefault("filter.excluded_domains", []string{})
	v.SetDefault("filter.tracking_params", []string{})

	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.markdown", true)

	v.SetDefault("storage.sqlite_path", "")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("resource.safety_reserve_memory", 1024)
	v.SetDefault("resource.safety_threshold", 500)
	v.SetDefault("resource.cpu_load_threshold", 80)
	v.SetDefault("resource.max_tabs_limit", 4)
	v.SetDefault("resource.tab_memory_usage", 150)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}

// CLIFlags 命令行参数,零值或nil表示未指定
type CLIFlags struct {
	Keywords    string
	StartDate   string
	EndDate     string
	Country     string
	Mode        string
	ReplayDir   string
	OutputDir   string
	SQLitePath  string
	PostgresDSN string
	LogLevel    string
	Timeout     time.Duration
	BatchDelay  time.Duration
	Domains     *bool
	Products    *bool
	Headless    *bool

	// ContinueOnError 批量处理时遇到失败是否继续
	ContinueOnError *bool
}

// MergeCLIFlags 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(f CLIFlags) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&c.Search.Keywords, f.Keywords)
	setString(&c.Search.StartDate, f.StartDate)
	setString(&c.Search.EndDate, f.EndDate)
	setString(&c.Search.Country, f.Country)
	setString(&c.Collect.Mode, f.Mode)
	setString(&c.Collect.ReplayDir, f.ReplayDir)
	setString(&c.Output.BaseDir, f.OutputDir)
	setString(&c.Storage.SQLitePath, f.SQLitePath)
	setString(&c.Storage.PostgresDSN, f.PostgresDSN)
	setString(&c.Logging.Level, f.LogLevel)

	if f.Timeout > 0 {
		c.Collect.RunTimeout = f.Timeout
	}
	if f.BatchDelay > 0 {
		c.Collect.BatchDelay = f.BatchDelay
	}
	if f.ContinueOnError != nil {
		c.Collect.ContinueOnError = *f.ContinueOnError
	}
	if f.Domains != nil {
		c.Analysis.Domains = *f.Domains
	}
	if f.Products != nil {
		c.Analysis.Products = *f.Products
	}
	if f.Headless != nil {
		c.Browser.Headless = *f.Headless
	}
}

// Validate 运行前检查配置
func (c *Config) Validate() error {
	mode, err := models.ParseViewMode(c.Collect.Mode)
	if err != nil {
		return &models.ConfigError{Field: "collect.mode", Cause: err}
	}
	if mode == models.ModeReplay && c.Collect.ReplayDir == "" {
		return &models.ConfigError{Field: "collect.replay_dir", Cause: errors.New("回放模式需要指定快照目录")}
	}
	if c.Collect.RunTimeout <= 0 {
		return &models.ConfigError{Field: "collect.run_timeout", Cause: models.ErrNoDeadline}
	}
	if c.Collect.InitialDelayMax < c.Collect.InitialDelayMin || c.Collect.AdvanceDelayMax < c.Collect.AdvanceDelayMin {
		return &models.ConfigError{Field: "collect", Cause: errors.New("等待区间的最大值不能小于最小值")}
	}
	if c.Analysis.ProbeConcurrency < 1 {
		return &models.ConfigError{Field: "analysis.probe_concurrency", Cause: errors.New("必须大于0")}
	}
	for i, w := range c.Filter.RedirectWrappers {
		if w.Host == "" || w.Param == "" {
			return &models.ConfigError{Field: fmt.Sprintf("filter.redirect_wrappers[%d]", i), Cause: errors.New("host 与 param 不能为空")}
		}
	}
	return nil
}

// SearchParams 关键词搜索参数
func (c *Config) SearchParams(keywords string) models.SearchParams {
	if keywords == "" {
		keywords = c.Search.Keywords
	}
	return models.SearchParams{
		Keywords:  strings.TrimSpace(keywords),
		StartDate: c.Search.StartDate,
		EndDate:   c.Search.EndDate,
		Country:   c.Search.Country,
		BaseURL:   c.Search.BaseURL,
	}
}

// CollectorConfig 收集器参数
func (c *Config) CollectorConfig() CollectorConfig {
	return CollectorConfig{
		StagnationThreshold: c.Collect.StagnationThreshold,
		InitialDelay:        DelayRange{Min: c.Collect.InitialDelayMin, Max: c.Collect.InitialDelayMax},
		AdvanceDelay:        DelayRange{Min: c.Collect.AdvanceDelayMin, Max: c.Collect.AdvanceDelayMax},
	}
}

// BrowserConfig 浏览器启动参数
func (c *Config) BrowserConfig() crawlers.BrowserConfig {
	return crawlers.BrowserConfig{
		Headless:    c.Browser.Headless,
		BrowserPath: c.Browser.Path,
		UserDataDir: c.Browser.UserDataDir,
		Insecure:    c.Browser.Insecure,
	}
}

// RodViewConfig 动态视图参数
func (c *Config) RodViewConfig() crawlers.RodViewConfig {
	return crawlers.RodViewConfig{
		GridTimeout:   c.Collect.GridTimeout,
		SettleTimeout: c.Collect.SettleTimeout,
		ScrollMin:     c.Collect.ScrollMin,
		ScrollMax:     c.Collect.ScrollMax,
	}
}

// StaticViewConfig 静态视图参数
func (c *Config) StaticViewConfig() crawlers.StaticViewConfig {
	return crawlers.StaticViewConfig{
		GridSelector:   c.Collect.GridSelector,
		NextSelector:   c.Collect.NextSelector,
		RequestTimeout: c.Collect.GridTimeout,
		Insecure:       c.Browser.Insecure,
	}
}

// DomainAggregatorConfig 域名探测参数
func (c *Config) DomainAggregatorConfig(ceiling int) DomainAggregatorConfig {
	concurrency := c.Analysis.ProbeConcurrency
	if ceiling > 0 && ceiling < concurrency {
		concurrency = ceiling
	}
	return DomainAggregatorConfig{
		Concurrency:   concurrency,
		RatePerSecond: c.Analysis.ProbeRate,
		Burst:         concurrency,
	}
}

// ResourceMonitorConfig MB 转换为字节
func (c *Config) ResourceMonitorConfig() crawlers.ResourceMonitorConfig {
	const mb = 1024 * 1024
	return crawlers.ResourceMonitorConfig{
		SafetyReserveMemory: int64(c.Resource.SafetyReserveMemory) * mb,
		SafetyThreshold:     int64(c.Resource.SafetyThreshold) * mb,
		CPULoadThreshold:    c.Resource.CPULoadThreshold,
		MaxTabsLimit:        c.Resource.MaxTabsLimit,
		TabMemoryUsage:      int64(c.Resource.TabMemoryUsage) * mb,
	}
}

// Canonicalizer 按过滤配置构造规范化器
func (c *Config) Canonicalizer() *crawlers.Canonicalizer {
	wrappers := make([]crawlers.RedirectWrapper, 0, len(c.Filter.RedirectWrappers))
	for _, w := range c.Filter.RedirectWrappers {
		wrappers = append(wrappers, crawlers.RedirectWrapper{Host: w.Host, Path: w.Path, Param: w.Param})
	}
	return crawlers.NewCanonicalizer(c.Filter.TrackingParams, wrappers)
}

// Classifier 按过滤配置构造分类器
func (c *Config) Classifier() *crawlers.LinkClassifier {
	return crawlers.NewLinkClassifier(c.Filter.ExcludedDomains)
}

// LogConfig 日志系统参数
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}
