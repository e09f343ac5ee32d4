package crawlers

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// RodProber 在广告库中以域名为查询词搜索,统计该域名的广告总数
type RodProber struct {
	pool        *PagePool
	search      models.SearchParams
	gridTimeout time.Duration
}

// NewRodProber 创建域名探测器,search 提供国家与日期范围
func NewRodProber(pool *PagePool, search models.SearchParams, gridTimeout time.Duration) *RodProber {
	if gridTimeout <= 0 {
		gridTimeout = 15 * time.Second
	}
	return &RodProber{pool: pool, search: search, gridTimeout: gridTimeout}
}

// ProbeHostname 返回域名的广告数;搜索结果中没有网格时记为0
func (p *RodProber) ProbeHostname(ctx context.Context, hostname string) (count int, err error) {
	page, err := p.pool.AcquirePage(ctx)
	if err != nil {
		return 0, &models.ProbeFault{Hostname: hostname, Err: err}
	}
	defer p.pool.ReleasePage(page)

	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("域名探测panic [%s]: %v", hostname, r)
			count, err = 0, &models.ProbeFault{Hostname: hostname, Err: fmt.Errorf("%w: %v", models.ErrBrowserCrashed, r)}
		}
	}()

	target := p.search.QueryURL(hostname)
	if err := navigate(ctx, page, target); err != nil {
		return 0, &models.ProbeFault{Hostname: hostname, Err: err}
	}

	found, err := waitForGrid(ctx, page, p.gridTimeout)
	if err != nil {
		return 0, &models.ProbeFault{Hostname: hostname, Err: err}
	}
	if !found {
		utils.Debugf("域名 %s 没有广告结果", hostname)
		return 0, nil
	}

	snapshot, err := evalSnapshot(page.Context(ctx))
	if err != nil {
		return 0, &models.ProbeFault{Hostname: hostname, Err: err}
	}
	count = CountAds(snapshot)
	utils.Debugf("域名 %s 广告数: %d", hostname, count)
	return count, nil
}
