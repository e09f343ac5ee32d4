package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/AdScout/internal/crawlers"
	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// memorySink 内存中的Sink,同时支持截图
type memorySink struct {
	mu        sync.Mutex
	bundles   map[models.BundleKind]*models.ReportBundle
	snapshots map[string][]byte
	failKind  models.BundleKind
}

func newMemorySink() *memorySink {
	return &memorySink{
		bundles:   make(map[models.BundleKind]*models.ReportBundle),
		snapshots: make(map[string][]byte),
	}
}

func (s *memorySink) Save(ctx context.Context, bundle *models.ReportBundle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if bundle.Kind == s.failKind {
		return "", errors.New("disk full")
	}
	s.bundles[bundle.Kind] = bundle
	return "mem://" + string(bundle.Kind), nil
}

func (s *memorySink) SaveSnapshot(ctx context.Context, keywords string, png []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[keywords] = png
	return "mem://" + keywords + ".png", nil
}

func newTestRunOptions(view View, sink Sink) RunOptions {
	return RunOptions{
		Params:    testSearch(),
		View:      view,
		Extractor: crawlers.NewExtractor(crawlers.NewCanonicalizer(nil, nil), crawlers.NewLinkClassifier(nil)),
		Sink:      sink,
		Prober:    newFakeProber(map[string]int{"shop0.example": 10, "shop1.example": 20, "shop2.example": 30}),
		Products:  true,
		Collector: CollectorConfig{StagnationThreshold: 2},
		Domain:    DomainAggregatorConfig{Concurrency: 2},
	}
}

func deadlineContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRunner_CompleteRun(t *testing.T) {
	view := &scriptedView{counts: []int{3, 6, 6, 6}}
	sink := newMemorySink()

	summary, err := NewRunner(newTestRunOptions(view, sink)).Run(deadlineContext(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.State != models.StateConverged || summary.Entries != 6 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Domains != 3 || summary.Products != 6 {
		t.Errorf("Domains/Products = %d/%d, want 3/6", summary.Domains, summary.Products)
	}
	if summary.Screenshot != "" || view.shot {
		t.Error("正常结束时不应截图")
	}

	ads := sink.bundles[models.KindAds]
	if ads == nil || ads.Status != models.StatusComplete || ads.TotalAdsFound != 6 {
		t.Fatalf("ads bundle = %+v", ads)
	}
	domains := sink.bundles[models.KindDomains]
	if domains.TotalAdsFound != 60 || domains.UniqueKeyCount != 3 {
		t.Errorf("domains bundle total/unique = %d/%d", domains.TotalAdsFound, domains.UniqueKeyCount)
	}
	products := sink.bundles[models.KindProducts]
	if products.TotalAdsFound != 12 {
		t.Errorf("products TotalAdsFound = %d, want 12", products.TotalAdsFound)
	}
	if summary.Locations[models.KindProducts] != "mem://products" {
		t.Errorf("Locations = %v", summary.Locations)
	}
}

func TestRunner_FaultSavesPartialResults(t *testing.T) {
	view := &scriptedView{counts: []int{2, 4}, failAt: 3, failErr: errors.New("page crashed")}
	sink := newMemorySink()

	summary, err := NewRunner(newTestRunOptions(view, sink)).Run(deadlineContext(t))

	var vf *models.ViewFault
	if !errors.As(err, &vf) {
		t.Fatalf("Run() error = %v, want *models.ViewFault", err)
	}
	if summary == nil {
		t.Fatal("故障时仍应返回摘要")
	}
	if summary.State != models.StateFailed || summary.Entries != 4 {
		t.Errorf("summary = %+v", summary)
	}

	for _, kind := range []models.BundleKind{models.KindAds, models.KindDomains, models.KindProducts} {
		bundle := sink.bundles[kind]
		if bundle == nil {
			t.Fatalf("缺少 %s 报告", kind)
		}
		if bundle.Status != models.StatusIncomplete {
			t.Errorf("%s Status = %s, want %s", kind, bundle.Status, models.StatusIncomplete)
		}
	}
	if !view.shot || summary.Screenshot == "" {
		t.Error("故障时应保存截图")
	}
	if _, ok := sink.snapshots[testSearch().Keywords]; !ok {
		t.Error("截图未写入Sink")
	}
}

func TestRunner_ExpiredDeadlineStillSaves(t *testing.T) {
	view := &scriptedView{counts: []int{3}}
	sink := newMemorySink()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	summary, err := NewRunner(newTestRunOptions(view, sink)).Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want DeadlineExceeded", err)
	}
	ads := sink.bundles[models.KindAds]
	if ads == nil || ads.Status != models.StatusIncomplete {
		t.Fatalf("ads bundle = %+v", ads)
	}
	if summary.Entries != 0 {
		t.Errorf("Entries = %d, want 0", summary.Entries)
	}
}

func TestRunner_RequiresDeadline(t *testing.T) {
	view := &scriptedView{counts: []int{1}}
	_, err := NewRunner(newTestRunOptions(view, newMemorySink())).Run(context.Background())

	var ce *models.ConfigError
	if !errors.As(err, &ce) || !errors.Is(err, models.ErrNoDeadline) {
		t.Fatalf("Run() error = %v, want ConfigError(ErrNoDeadline)", err)
	}
	if view.observed != 0 {
		t.Error("没有超时时间时不应开始收集")
	}
}

func TestRunner_SaveErrorIsReported(t *testing.T) {
	view := &scriptedView{counts: []int{2, 2, 2}}
	sink := newMemorySink()
	sink.failKind = models.KindDomains

	summary, err := NewRunner(newTestRunOptions(view, sink)).Run(deadlineContext(t))
	if err == nil {
		t.Fatal("保存失败应返回错误")
	}
	// 其他报告照常保存
	if sink.bundles[models.KindAds] == nil || sink.bundles[models.KindProducts] == nil {
		t.Error("单个报告失败不应影响其他报告")
	}
	if _, ok := summary.Locations[models.KindDomains]; ok {
		t.Error("失败的报告不应有保存位置")
	}
}

func TestRunner_FileReporterRoundTrip(t *testing.T) {
	view := &scriptedView{counts: []int{3, 5, 5, 5}}
	reporter := utils.NewFileReporter(t.TempDir(), false)

	summary, err := NewRunner(newTestRunOptions(view, reporter)).Run(deadlineContext(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, kind := range []models.BundleKind{models.KindDomains, models.KindProducts} {
		bundle, err := utils.LoadBundle(summary.Locations[kind])
		if err != nil {
			t.Fatalf("LoadBundle(%s) error = %v", kind, err)
		}
		if bundle.UniqueKeyCount != len(bundle.Records) {
			t.Errorf("%s UniqueKeyCount = %d, len(Records) = %d", kind, bundle.UniqueKeyCount, len(bundle.Records))
		}
		total := 0
		for _, rec := range bundle.Records {
			total += rec.TotalAds
		}
		if bundle.TotalAdsFound != total {
			t.Errorf("%s TotalAdsFound = %d, sum = %d", kind, bundle.TotalAdsFound, total)
		}
	}

	ads, err := utils.LoadBundle(summary.Locations[models.KindAds])
	if err != nil {
		t.Fatalf("LoadBundle(ads) error = %v", err)
	}
	if len(ads.Ads) != 5 || ads.SearchKeywords != testSearch().Keywords {
		t.Errorf("ads bundle = %d ads, keywords %q", len(ads.Ads), ads.SearchKeywords)
	}
}
