package crawlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

// PagePool 域名探测用的标签页池
// 标签页数量受资源监控器约束,归还时导航到空白页并清理站点存储
type PagePool struct {
	session *BrowserSession

	// 所有活跃的标签页
	pages []*rod.Page

	// 可用标签页channel
	availablePages chan *rod.Page

	resourceMonitor *ResourceMonitor

	// 清理失败次数,达到2次销毁
	cleanFailures map[*rod.Page]int

	mu     sync.Mutex
	closed bool
}

// NewPagePool 创建标签页池实例
func NewPagePool(session *BrowserSession, resourceMonitor *ResourceMonitor) *PagePool {
	if resourceMonitor == nil {
		resourceMonitor = NewResourceMonitor(DefaultResourceMonitorConfig())
	}
	return &PagePool{
		session:         session,
		availablePages:  make(chan *rod.Page, 32),
		resourceMonitor: resourceMonitor,
		cleanFailures:   make(map[*rod.Page]int),
	}
}

// AcquirePage 获取一个可用的标签页,达到上限时阻塞等待归还
func (pp *PagePool) AcquirePage(ctx context.Context) (*rod.Page, error) {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, fmt.Errorf("标签页池已关闭")
	}
	currentSize := len(pp.pages)
	pp.mu.Unlock()

	select {
	case page := <-pp.availablePages:
		return page, nil
	default:
	}

	maxSize := pp.resourceMonitor.CalculateMaxTabs()
	if currentSize >= maxSize {
		return pp.waitForPage(ctx)
	}

	if canCreate, reason := pp.resourceMonitor.CheckResourceAvailability(); !canCreate && currentSize > 0 {
		log.Warn().Msgf("资源不足,等待已有标签页: %s", reason)
		return pp.waitForPage(ctx)
	}

	page, err := pp.session.NewPage()
	if err != nil {
		log.Error().Err(err).Msg("创建标签页失败")
		return nil, err
	}

	pp.mu.Lock()
	pp.pages = append(pp.pages, page)
	currentSize = len(pp.pages)
	pp.mu.Unlock()

	log.Debug().Msgf("创建新标签页,当前标签页数: %d, 最大限制: %d", currentSize, maxSize)
	return page, nil
}

func (pp *PagePool) waitForPage(ctx context.Context) (*rod.Page, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case page := <-pp.availablePages:
		return page, nil
	}
}

// ReleasePage 归还标签页到池中
func (pp *PagePool) ReleasePage(page *rod.Page) {
	if page == nil {
		return
	}

	pp.mu.Lock()
	closed := pp.closed
	pp.mu.Unlock()
	if closed {
		pp.destroyPage(page)
		return
	}

	if err := pp.cleanPage(page); err != nil {
		pp.mu.Lock()
		pp.cleanFailures[page]++
		failures := pp.cleanFailures[page]
		pp.mu.Unlock()

		log.Warn().Err(err).Msgf("清理标签页状态失败 (第%d次失败)", failures)
		if failures >= 2 {
			pp.destroyPage(page)
			return
		}
	} else {
		pp.mu.Lock()
		delete(pp.cleanFailures, page)
		pp.mu.Unlock()
	}

	select {
	case pp.availablePages <- page:
	default:
		pp.destroyPage(page)
	}
}

// cleanPage 清理存储后回到空白页
func (pp *PagePool) cleanPage(page *rod.Page) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("清理标签页panic: %v", r)
		}
	}()

	_, err = page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			try { if (window.localStorage) localStorage.clear(); } catch (e) {}
			try { if (window.sessionStorage) sessionStorage.clear(); } catch (e) {}
			return true;
		}`,
	})
	if err != nil {
		return fmt.Errorf("清理标签页存储失败: %w", err)
	}
	if err := page.Navigate("about:blank"); err != nil {
		return fmt.Errorf("标签页导航到空白页失败: %w", err)
	}
	return nil
}

// destroyPage 销毁标签页
func (pp *PagePool) destroyPage(page *rod.Page) {
	pp.mu.Lock()
	for i, p := range pp.pages {
		if p == page {
			pp.pages = append(pp.pages[:i], pp.pages[i+1:]...)
			break
		}
	}
	delete(pp.cleanFailures, page)
	remaining := len(pp.pages)
	pp.mu.Unlock()

	if err := page.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭标签页失败")
	}
	log.Debug().Msgf("销毁标签页,当前标签页数: %d", remaining)
}

// CurrentSize 返回当前标签页池的大小
func (pp *PagePool) CurrentSize() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.pages)
}

// MaxSize 返回当前允许的最大标签页数
func (pp *PagePool) MaxSize() int {
	return pp.resourceMonitor.CalculateMaxTabs()
}

// Close 关闭所有标签页
func (pp *PagePool) Close() {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return
	}
	pp.closed = true
	pages := pp.pages
	pp.pages = nil
	pp.mu.Unlock()

	for len(pp.availablePages) > 0 {
		<-pp.availablePages
	}
	for _, page := range pages {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭标签页失败")
		}
	}
	log.Debug().Msgf("标签页池已关闭,共关闭 %d 个标签页", len(pages))
}
