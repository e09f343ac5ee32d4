package core

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/RecoveryAshes/AdScout/internal/crawlers"
	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// Prober 查询单个域名的广告总数
type Prober interface {
	ProbeHostname(ctx context.Context, hostname string) (int, error)
}

// DomainAggregatorConfig 域名探测参数
type DomainAggregatorConfig struct {
	Concurrency   int     // 同时进行的探测数
	RatePerSecond float64 // 每秒最多发起的探测数,<=0 不限速
	Burst         int
}

// DomainAggregator 按主机名统计广告数
// 每个主机名只探测一次,失败的主机名保持已占用状态,不再重试
type DomainAggregator struct {
	prober  Prober
	search  models.SearchParams
	records *models.RecordSet
	claimed *models.KeySet
	config  DomainAggregatorConfig
	limiter *rate.Limiter
	failed  atomic.Int32
}

// NewDomainAggregator 创建域名聚合器,records 由运行方持有
func NewDomainAggregator(prober Prober, search models.SearchParams, records *models.RecordSet, config DomainAggregatorConfig) *DomainAggregator {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RatePerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}
	return &DomainAggregator{
		prober:  prober,
		search:  search,
		records: records,
		claimed: models.NewKeySet(),
		config:  config,
		limiter: limiter,
	}
}

// Ingest 探测链接中尚未出现过的主机名,全部探测结束后返回
func (a *DomainAggregator) Ingest(ctx context.Context, links []string) {
	var g errgroup.Group
	g.SetLimit(a.config.Concurrency)

	for _, link := range links {
		host, ok := crawlers.Hostname(link)
		if !ok || !a.claimed.Claim(host) {
			continue
		}

		g.Go(func() error {
			a.probe(ctx, host)
			return nil
		})
	}
	_ = g.Wait()
}

// probe 探测单个主机名,失败只记录日志
func (a *DomainAggregator) probe(ctx context.Context, host string) {
	if err := a.limiter.Wait(ctx); err != nil {
		a.failed.Add(1)
		utils.Warnf("域名探测取消 [%s]: %v", host, err)
		return
	}

	count, err := a.prober.ProbeHostname(ctx, host)
	if err != nil {
		a.failed.Add(1)
		var pf *models.ProbeFault
		if !errors.As(err, &pf) {
			err = &models.ProbeFault{Hostname: host, Err: err}
		}
		utils.Warnf("%v", err)
		return
	}

	a.records.Put(host, models.AggregateRecord{
		TotalAds:  count,
		SearchURL: a.search.QueryURL(host),
	})
	utils.Infof("🔎 域名 %s: %d 条广告", host, count)
}

// Records 域名记录集
func (a *DomainAggregator) Records() *models.RecordSet {
	return a.records
}

// Failed 探测失败的主机名数
func (a *DomainAggregator) Failed() int {
	return int(a.failed.Load())
}

// ProductAggregator 按规范化链接累计广告数
// 同一链接每出现一次,就把该条目的广告数量加到总数上
type ProductAggregator struct {
	records   *models.RecordSet
	searchURL string
}

// NewProductAggregator 创建产品聚合器,searchURL 为关键词搜索地址
func NewProductAggregator(records *models.RecordSet, searchURL string) *ProductAggregator {
	return &ProductAggregator{records: records, searchURL: searchURL}
}

// Ingest 累计条目中的每个链接
func (a *ProductAggregator) Ingest(entries []models.Entry) {
	for _, entry := range entries {
		quantity := crawlers.ParseQuantity(entry.Quantity)
		for _, link := range entry.Links {
			a.records.Accumulate(link, quantity, models.AggregateRecord{
				SearchURL: a.searchURL,
				Title:     entry.Title,
			})
		}
	}
}

// Records 产品记录集
func (a *ProductAggregator) Records() *models.RecordSet {
	return a.records
}
