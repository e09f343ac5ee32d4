package crawlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// gridSnapshotJS 取第一个计算样式为 display:grid 的元素,返回其子元素的链接与strong文本
const gridSnapshotJS = `() => {
	const grid = Array.from(document.querySelectorAll("*")).find(
		(el) => getComputedStyle(el).display === "grid"
	);
	if (!grid) return "";
	const items = Array.from(grid.children || []).map((ad) => ({
		anchors: Array.from(ad.querySelectorAll("a"))
			.filter((a) => a.href)
			.map((a) => {
				const span = a.querySelector("span");
				return { href: a.href, label: span ? (span.innerText || span.textContent || "") : "" };
			}),
		strong: Array.from(ad.querySelectorAll("strong")).map((s) => s.textContent || ""),
	}));
	return JSON.stringify({ items });
}`

// gridPresentJS 页面上是否已经出现网格容器
const gridPresentJS = `() => Array.from(document.querySelectorAll("*")).some(
	(el) => getComputedStyle(el).display === "grid"
)`

// humanScrollJS 分多步向下滚动,每步步长随机,接近底部时偶尔回退一点
const humanScrollJS = `async (minStep, maxStep) => {
	const sleep = (ms) => new Promise((r) => setTimeout(r, ms));
	const viewport = window.innerHeight;
	let target = window.scrollY;
	for (let i = 0; i < 50; i++) {
		const height = document.body.scrollHeight;
		if (target + viewport >= height - 200) break;
		target += Math.floor(Math.random() * (maxStep - minStep + 1) + minStep);
		if (target + viewport >= height - 200 && Math.random() >= 0.8) {
			target -= Math.floor(Math.random() * 300 + 100);
		}
		target = Math.max(0, Math.min(target, height - viewport));
		window.scrollTo({ top: target, behavior: "smooth" });
		await sleep(Math.floor(Math.random() * 200 + 100));
	}
	window.scrollTo({ top: document.body.scrollHeight, behavior: "smooth" });
	return document.body.scrollHeight;
}`

// BrowserConfig 浏览器启动配置
type BrowserConfig struct {
	Headless    bool
	BrowserPath string // 为空时由launcher自动查找或下载
	UserDataDir string // 复用已登录的浏览器配置目录
	Insecure    bool   // 忽略证书错误
}

// BrowserSession 一个go-rod浏览器实例,页面共享同一组请求头
type BrowserSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	config   BrowserConfig
	headers  models.HeaderProvider
}

// LaunchBrowser 启动并连接浏览器
func LaunchBrowser(config BrowserConfig, headers models.HeaderProvider) (*BrowserSession, error) {
	l := launcher.New().Headless(config.Headless)
	if config.BrowserPath != "" {
		l = l.Bin(config.BrowserPath)
	}
	if config.UserDataDir != "" {
		l = l.UserDataDir(config.UserDataDir)
	}
	if config.Insecure {
		l = l.Set("ignore-certificate-errors")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return &BrowserSession{browser: browser, launcher: l, config: config, headers: headers}, nil
}

// NewPage 打开一个新标签页并应用请求头
func (s *BrowserSession) NewPage() (page *rod.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("创建标签页panic: %v", r)
			err = fmt.Errorf("%w: %v", models.ErrBrowserCrashed, r)
		}
	}()

	page, err = s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}
	if err := s.applyHeaders(page); err != nil {
		utils.Warnf("应用请求头失败: %v", err)
	}
	return page, nil
}

// applyHeaders User-Agent 走专门的覆盖接口,其余作为额外请求头
func (s *BrowserSession) applyHeaders(page *rod.Page) error {
	if s.headers == nil {
		return nil
	}
	headers, err := s.headers.GetHeaders()
	if err != nil {
		return err
	}

	var dict []string
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		if name == "User-Agent" {
			if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: values[0]}); err != nil {
				return fmt.Errorf("设置User-Agent失败: %w", err)
			}
			continue
		}
		dict = append(dict, name, values[0])
	}
	if len(dict) > 0 {
		if _, err := page.SetExtraHeaders(dict); err != nil {
			return fmt.Errorf("设置额外请求头失败: %w", err)
		}
	}
	return nil
}

// Close 关闭浏览器;使用自定义配置目录时只结束进程,不删除目录
func (s *BrowserSession) Close() error {
	err := s.browser.Close()
	if s.config.UserDataDir != "" {
		s.launcher.Kill()
	} else {
		s.launcher.Cleanup()
	}
	utils.Debugf("浏览器已关闭")
	return err
}

// RodViewConfig 动态视图配置
type RodViewConfig struct {
	GridTimeout   time.Duration // 首次等待网格出现的时间
	SettleTimeout time.Duration // 滚动后等待网络空闲的上限
	ScrollMin     int
	ScrollMax     int
}

// DefaultRodViewConfig 默认配置
func DefaultRodViewConfig() RodViewConfig {
	return RodViewConfig{
		GridTimeout:   30 * time.Second,
		SettleTimeout: 5 * time.Second,
		ScrollMin:     800,
		ScrollMax:     1200,
	}
}

// RodView 浏览器中的无限滚动网格
// 第一次观测时才导航到搜索页并等待网格出现,失败同样以 ViewFault 交给收集器
type RodView struct {
	page      *rod.Page
	config    RodViewConfig
	searchURL string
	ready     bool
}

// OpenRodView 为搜索页创建标签页
func OpenRodView(session *BrowserSession, searchURL string, config RodViewConfig) (*RodView, error) {
	if config.ScrollMin <= 0 || config.ScrollMax < config.ScrollMin {
		def := DefaultRodViewConfig()
		config.ScrollMin, config.ScrollMax = def.ScrollMin, def.ScrollMax
	}

	page, err := session.NewPage()
	if err != nil {
		return nil, models.NewViewFault("open", err)
	}
	return &RodView{page: page, config: config, searchURL: searchURL}, nil
}

// prepare 导航并等待网格出现
func (v *RodView) prepare(ctx context.Context) error {
	utils.Infof("🌐 打开搜索页: %s", v.searchURL)
	if err := navigate(ctx, v.page, v.searchURL); err != nil {
		return models.NewViewFault("open", err)
	}

	utils.Info("等待广告网格加载...")
	found, err := waitForGrid(ctx, v.page, v.config.GridTimeout)
	if err != nil {
		return models.NewViewFault("wait", err)
	}
	if !found {
		return models.NewViewFault("wait", models.ErrGridNotFound)
	}
	v.ready = true
	return nil
}

// ObserveGrid 读取当前已加载的网格
func (v *RodView) ObserveGrid(ctx context.Context) (snapshot *models.GridSnapshot, err error) {
	defer recoverViewPanic("observe", &err)

	if !v.ready {
		if err := v.prepare(ctx); err != nil {
			return nil, err
		}
	}

	snapshot, err = evalSnapshot(v.page.Context(ctx))
	if err != nil {
		return nil, models.NewViewFault("observe", err)
	}
	return snapshot, nil
}

// AdvanceView 向下滚动并等待新内容的请求结束
func (v *RodView) AdvanceView(ctx context.Context) (err error) {
	defer recoverViewPanic("advance", &err)

	page := v.page.Context(ctx)
	settle := page.Timeout(v.config.SettleTimeout)
	waitIdle := settle.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)

	if _, err := page.Evaluate(rod.Eval(humanScrollJS, v.config.ScrollMin, v.config.ScrollMax)); err != nil {
		return models.NewViewFault("advance", fmt.Errorf("滚动失败: %w", err))
	}
	waitIdle()

	if err := ctx.Err(); err != nil {
		return models.NewViewFault("advance", err)
	}
	return nil
}

// Screenshot 截取整页,用于故障现场
func (v *RodView) Screenshot(ctx context.Context) (data []byte, err error) {
	defer recoverViewPanic("screenshot", &err)

	return v.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close 关闭标签页
func (v *RodView) Close() error {
	return v.page.Close()
}

// navigate 导航并等待load事件
func navigate(ctx context.Context, page *rod.Page, target string) error {
	p := page.Context(ctx)
	if err := p.Navigate(target); err != nil {
		return fmt.Errorf("导航失败 [%s]: %w", target, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("等待页面加载失败 [%s]: %w", target, err)
	}
	return nil
}

// waitForGrid 轮询直到网格出现;超时返回false,其他错误原样返回
func waitForGrid(ctx context.Context, page *rod.Page, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		res, err := page.Context(ctx).Evaluate(rod.Eval(gridPresentJS))
		if err != nil {
			return false, fmt.Errorf("检测网格失败: %w", err)
		}
		if res.Value.Bool() {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

// evalSnapshot 在页面中执行快照脚本并解码
func evalSnapshot(page *rod.Page) (*models.GridSnapshot, error) {
	res, err := page.Evaluate(rod.Eval(gridSnapshotJS))
	if err != nil {
		return nil, fmt.Errorf("执行网格快照脚本失败: %w", err)
	}
	raw := res.Value.Str()
	if raw == "" {
		return nil, nil
	}

	var snapshot models.GridSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("解析网格快照失败: %w", err)
	}
	return &snapshot, nil
}

// recoverViewPanic rod 的 Must 系列与连接断开会以panic形式出现
func recoverViewPanic(op string, err *error) {
	if r := recover(); r != nil {
		utils.Errorf("浏览器操作panic [%s]: %v", op, r)
		*err = &models.ViewFault{Op: op, Err: fmt.Errorf("%w: %v", models.ErrBrowserCrashed, r)}
	}
}
