package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/AdScout/internal/crawlers"
	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// App 多次搜索之间共享的资源: 配置、请求头、浏览器、资源监控、Sink
// 浏览器在第一次需要时才启动
type App struct {
	config  *Config
	headers *HeaderManager
	sink    Sink
	monitor *crawlers.ResourceMonitor

	extractor *crawlers.Extractor

	mu      sync.Mutex
	session *crawlers.BrowserSession
	pool    *crawlers.PagePool

	showProgress bool
}

// NewApp 创建应用实例
func NewApp(config *Config, headers *HeaderManager, sink Sink, showProgress bool) *App {
	monitor := crawlers.NewResourceMonitor(config.ResourceMonitorConfig())
	monitor.StartMonitoring(time.Second)

	return &App{
		config:       config,
		headers:      headers,
		sink:         sink,
		monitor:      monitor,
		extractor:    crawlers.NewExtractor(config.Canonicalizer(), config.Classifier()),
		showProgress: showProgress,
	}
}

// browser 返回共享的浏览器会话
func (a *App) browser() (*crawlers.BrowserSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return a.session, nil
	}
	session, err := crawlers.LaunchBrowser(a.config.BrowserConfig(), a.headers)
	if err != nil {
		return nil, err
	}
	a.session = session
	a.pool = crawlers.NewPagePool(session, a.monitor)
	return session, nil
}

// RunKeywords 搜索一组关键词,每次搜索有独立的超时
func (a *App) RunKeywords(ctx context.Context, keywords string) (*models.RunSummary, error) {
	params := a.config.SearchParams(keywords)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, a.config.Collect.RunTimeout)
	defer cancel()

	view, closeView, err := a.openView(params)
	if err != nil {
		return nil, err
	}
	defer closeView()

	opts := RunOptions{
		Params:       params,
		View:         view,
		Extractor:    a.extractor,
		Sink:         a.sink,
		Products:     a.config.Analysis.Products,
		Collector:    a.config.CollectorConfig(),
		SaveTimeout:  a.config.Collect.SaveTimeout,
		ShowProgress: a.showProgress,
	}

	if a.config.Analysis.Domains {
		if _, err := a.browser(); err != nil {
			return nil, fmt.Errorf("域名探测需要浏览器: %w", err)
		}
		ceiling := a.monitor.ProbeConcurrency(a.config.Analysis.ProbeConcurrency)
		opts.Prober = crawlers.NewRodProber(a.pool, params, a.config.Analysis.ProbeGridTimeout)
		opts.Domain = a.config.DomainAggregatorConfig(ceiling)
	}

	summary, err := NewRunner(opts).Run(runCtx)
	PrintRunSummary(summary)
	return summary, err
}

// openView 按模式创建视图
func (a *App) openView(params models.SearchParams) (View, func(), error) {
	mode, err := models.ParseViewMode(a.config.Collect.Mode)
	if err != nil {
		return nil, nil, &models.ConfigError{Field: "collect.mode", Cause: err}
	}

	switch mode {
	case models.ModeStatic:
		utils.Infof("🔍 静态模式: %s", params.SearchURL())
		view := crawlers.NewStaticView(params.SearchURL(), a.config.StaticViewConfig(), a.headers)
		return view, func() {}, nil

	case models.ModeReplay:
		view, err := crawlers.NewReplayView(a.config.Collect.ReplayDir, a.config.Collect.GridSelector, params.SearchURL())
		if err != nil {
			return nil, nil, &models.ConfigError{Field: "collect.replay_dir", Cause: err}
		}
		return view, func() {}, nil

	default:
		session, err := a.browser()
		if err != nil {
			return nil, nil, err
		}
		view, err := crawlers.OpenRodView(session, params.SearchURL(), a.config.RodViewConfig())
		if err != nil {
			return nil, nil, err
		}
		return view, func() {
			if err := view.Close(); err != nil {
				utils.Warnf("关闭搜索页失败: %v", err)
			}
		}, nil
	}
}

// Close 释放浏览器与监控
func (a *App) Close() {
	a.monitor.StopMonitoring()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pool != nil {
		a.pool.Close()
	}
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
		a.session = nil
	}
}
