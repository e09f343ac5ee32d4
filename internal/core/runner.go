package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// DefaultSaveTimeout 保存报告(含部分保存)的时间上限
const DefaultSaveTimeout = 30 * time.Second

// RunOptions 一次关键词搜索所需的组件
type RunOptions struct {
	Params    models.SearchParams
	View      View
	Extractor EntryExtractor
	Sink      Sink

	// Prober 为nil时不做域名统计
	Prober   Prober
	Products bool

	Collector   CollectorConfig
	Domain      DomainAggregatorConfig
	SaveTimeout time.Duration

	ShowProgress bool
}

// Runner 执行一次搜索: 收集 → 聚合 → 保存
// 记录集归本次运行所有,收集器每轮只把新增条目交给聚合器
type Runner struct {
	opts RunOptions

	domains  *DomainAggregator
	products *ProductAggregator
}

// NewRunner 创建运行器
func NewRunner(opts RunOptions) *Runner {
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DefaultSaveTimeout
	}
	r := &Runner{opts: opts}
	if opts.Prober != nil {
		r.domains = NewDomainAggregator(opts.Prober, opts.Params, models.NewRecordSet(), opts.Domain)
	}
	if opts.Products {
		r.products = NewProductAggregator(models.NewRecordSet(), opts.Params.SearchURL())
	}
	return r
}

// Run 执行收集并保存结果
// 收集中断(视图故障、取消、超时)时仍会保存已累计的结果,状态为 incomplete,
// 返回的摘要有效,错误中包含 *models.ViewFault
func (r *Runner) Run(ctx context.Context) (*models.RunSummary, error) {
	if err := r.opts.Params.Validate(); err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		return nil, &models.ConfigError{Field: "collect.run_timeout", Cause: models.ErrNoDeadline}
	}

	start := time.Now()
	runID := models.NewRunID()
	logger := utils.RunLogger(runID, r.opts.Params.Keywords)
	logger.Info().Str("url", r.opts.Params.SearchURL()).Msg("🚀 开始搜索")

	collector := NewCollector(r.opts.View, r.opts.Extractor, r.opts.Collector)
	if r.domains != nil {
		collector.OnNewEntries(func(ctx context.Context, delta []models.Entry) {
			r.domains.Ingest(ctx, models.CollectLinks(delta))
		})
	}
	if r.products != nil {
		collector.OnNewEntries(func(_ context.Context, delta []models.Entry) {
			r.products.Ingest(delta)
		})
	}

	var bar *progressbar.ProgressBar
	if r.opts.ShowProgress {
		bar = utils.NewProgressBar(-1, "收集广告")
		collector.OnPass(func(s PassStats) {
			_ = bar.Set(s.Recorded)
		})
	}

	result, collectErr := collector.Collect(ctx)
	if bar != nil {
		_ = bar.Finish()
	}

	status := models.StatusComplete
	if collectErr != nil {
		status = models.StatusIncomplete
		logger.Error().Err(collectErr).Int("entries", len(result.Entries)).Msg("❌ 收集失败,保存部分结果")
	}

	// 保存不受运行上下文取消的影响
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.SaveTimeout)
	defer cancel()

	summary := &models.RunSummary{
		RunID:     runID,
		Keywords:  r.opts.Params.Keywords,
		State:     result.State,
		Passes:    result.Passes,
		Entries:   len(result.Entries),
		Locations: make(map[models.BundleKind]string),
	}

	saveErr := r.saveAll(saveCtx, runID, result, status, summary)

	if collectErr != nil {
		summary.Screenshot = r.saveScreenshot(saveCtx)
	}

	summary.Duration = time.Since(start)
	return summary, errors.Join(collectErr, saveErr)
}

// saveAll 保存广告、域名、产品三类报告,单个失败不影响其他
func (r *Runner) saveAll(ctx context.Context, runID string, result *CollectionResult, status models.RunStatus, summary *models.RunSummary) error {
	if r.opts.Sink == nil {
		return nil
	}

	bundles := []*models.ReportBundle{
		models.NewAdsBundle(runID, result.Entries, r.opts.Params, status),
	}
	if r.domains != nil {
		snapshot := r.domains.Records().Snapshot()
		summary.Domains = len(snapshot)
		summary.FailedHost = r.domains.Failed()
		bundles = append(bundles, models.NewRecordBundle(runID, models.KindDomains, snapshot, r.opts.Params, status))
	}
	if r.products != nil {
		snapshot := r.products.Records().Snapshot()
		summary.Products = len(snapshot)
		bundles = append(bundles, models.NewRecordBundle(runID, models.KindProducts, snapshot, r.opts.Params, status))
	}

	var errs []error
	for _, bundle := range bundles {
		location, err := r.opts.Sink.Save(ctx, bundle)
		if location != "" {
			summary.Locations[bundle.Kind] = location
		}
		if err != nil {
			utils.Errorf("保存%s报告失败: %v", bundle.Kind, err)
			errs = append(errs, fmt.Errorf("保存%s报告失败: %w", bundle.Kind, err))
		}
	}
	return errors.Join(errs...)
}

// saveScreenshot 视图支持截图且Sink支持保存时留存故障现场
func (r *Runner) saveScreenshot(ctx context.Context) string {
	shooter, ok := r.opts.View.(Screenshotter)
	if !ok {
		return ""
	}
	snapshots, ok := r.opts.Sink.(SnapshotSink)
	if !ok {
		return ""
	}

	png, err := shooter.Screenshot(ctx)
	if err != nil {
		utils.Warnf("截图失败: %v", err)
		return ""
	}
	path, err := snapshots.SaveSnapshot(ctx, r.opts.Params.Keywords, png)
	if err != nil {
		utils.Warnf("保存截图失败: %v", err)
		return ""
	}
	return path
}

// PrintRunSummary 打印运行摘要
func PrintRunSummary(summary *models.RunSummary) {
	if summary == nil {
		return
	}
	utils.Info("==================================================")
	utils.Infof("📊 运行摘要: %s", summary.Keywords)
	utils.Info("==================================================")
	utils.Infof("状态: %s (%d 轮)", summary.State, summary.Passes)
	utils.Infof("📦 广告条目: %d", summary.Entries)
	if _, ok := summary.Locations[models.KindDomains]; ok {
		utils.Infof("🌐 域名: %d (探测失败 %d)", summary.Domains, summary.FailedHost)
	}
	if _, ok := summary.Locations[models.KindProducts]; ok {
		utils.Infof("🛒 产品: %d", summary.Products)
	}
	for _, kind := range []models.BundleKind{models.KindAds, models.KindDomains, models.KindProducts} {
		if loc, ok := summary.Locations[kind]; ok {
			utils.Infof("💾 %s: %s", kind, loc)
		}
	}
	if summary.Screenshot != "" {
		utils.Infof("📸 截图: %s", summary.Screenshot)
	}
	utils.Infof("⏱️  耗时: %.2f秒", summary.Duration.Seconds())
	utils.Info("==================================================")
}
