package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// View 一个可以反复观测和推进的广告网格
type View interface {
	// ObserveGrid 返回当前已加载的网格,没有网格时返回nil
	ObserveGrid(ctx context.Context) (*models.GridSnapshot, error)
	// AdvanceView 让视图加载更多内容(滚动、翻页)
	AdvanceView(ctx context.Context) error
}

// Screenshotter 可截图的视图
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// EntryExtractor 将网格快照转换为广告条目
type EntryExtractor interface {
	Extract(snapshot *models.GridSnapshot) []models.Entry
}

// DelayRange 随机等待区间
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Pick 在 [Min, Max] 中随机取值
func (d DelayRange) Pick() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rand.Int63n(int64(d.Max-d.Min)+1))
}

// CollectorConfig 收集器参数
type CollectorConfig struct {
	// StagnationThreshold 条目数连续不变多少次视为收敛
	StagnationThreshold int
	AdvanceDelay        DelayRange
	InitialDelay        DelayRange
}

// DefaultCollectorConfig 默认参数
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		StagnationThreshold: 3,
		AdvanceDelay:        DelayRange{Min: 500 * time.Millisecond, Max: time.Second},
		InitialDelay:        DelayRange{Min: 2 * time.Second, Max: 3 * time.Second},
	}
}

// PassStats 单轮观测的统计
type PassStats struct {
	Pass       int
	Observed   int // 本轮提取到的条目数
	Recorded   int // 累计记录的条目数
	NewEntries int
	Stagnation int
}

// PassHook 每轮出现新条目时调用,delta 只包含新增部分
type PassHook func(ctx context.Context, delta []models.Entry)

// CollectionResult 收集结果
// 出错时同样返回,Entries 为出错前累计的全部条目
type CollectionResult struct {
	Entries  []models.Entry
	Passes   int
	Advances int
	State    models.CollectionState
}

// Collector 反复观测视图,直到条目数稳定
type Collector struct {
	view      View
	extractor EntryExtractor
	config    CollectorConfig

	hooks  []PassHook
	onPass func(PassStats)

	// sleep 可在测试中替换
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCollector 创建收集器
func NewCollector(view View, extractor EntryExtractor, config CollectorConfig) *Collector {
	if config.StagnationThreshold <= 0 {
		config.StagnationThreshold = DefaultCollectorConfig().StagnationThreshold
	}
	return &Collector{
		view:      view,
		extractor: extractor,
		config:    config,
		sleep:     sleepContext,
	}
}

// OnNewEntries 注册新条目回调(聚合器)
func (c *Collector) OnNewEntries(hook PassHook) {
	c.hooks = append(c.hooks, hook)
}

// OnPass 注册每轮结束回调(进度显示)
func (c *Collector) OnPass(fn func(PassStats)) {
	c.onPass = fn
}

// Collect 执行收集循环
//
// 每轮: 观测 -> 提取 -> 与上一轮条目数比较
//   - 增加: 停滞计数清零,新增部分交给回调
//   - 不变: 停滞计数+1
//   - 减少: 停滞计数清零,已记录条目保留
//
// 停滞计数达到阈值即收敛;否则推进视图并随机等待。
// 任何视图错误都会结束收集,返回已累计的结果和 *models.ViewFault
func (c *Collector) Collect(ctx context.Context) (*CollectionResult, error) {
	result := &CollectionResult{
		Entries: []models.Entry{},
		State:   models.StateCollecting,
	}

	fail := func(op string, err error) (*CollectionResult, error) {
		result.State = models.StateFailed
		utils.Warnf("收集中断 (第%d轮, 已记录%d条): %v", result.Passes, len(result.Entries), err)
		return result, models.NewViewFault(op, err)
	}

	if err := c.sleep(ctx, c.config.InitialDelay.Pick()); err != nil {
		return fail("wait", err)
	}

	previous := 0
	stagnation := 0
	for {
		if err := ctx.Err(); err != nil {
			return fail("observe", err)
		}
		result.Passes++

		snapshot, err := c.view.ObserveGrid(ctx)
		if err != nil {
			return fail("observe", err)
		}
		current := c.extractor.Extract(snapshot)

		var delta []models.Entry
		switch {
		case len(current) > previous:
			stagnation = 0
			if len(current) > len(result.Entries) {
				delta = current[len(result.Entries):]
				result.Entries = append(result.Entries, delta...)
			}
		case len(current) == previous:
			stagnation++
		default:
			utils.Debugf("网格条目数减少: %d -> %d, 保留已记录条目", previous, len(current))
			stagnation = 0
		}
		previous = len(current)

		if len(delta) > 0 {
			for _, hook := range c.hooks {
				hook(ctx, delta)
			}
		}

		utils.Debugf("第%d轮: 观测%d条, 累计%d条, 停滞%d", result.Passes, len(current), len(result.Entries), stagnation)
		if c.onPass != nil {
			c.onPass(PassStats{
				Pass:       result.Passes,
				Observed:   len(current),
				Recorded:   len(result.Entries),
				NewEntries: len(delta),
				Stagnation: stagnation,
			})
		}

		if stagnation >= c.config.StagnationThreshold {
			result.State = models.StateConverged
			utils.Infof("✅ 收集完成: %d 条广告, %d 轮", len(result.Entries), result.Passes)
			return result, nil
		}

		if err := c.view.AdvanceView(ctx); err != nil {
			return fail("advance", err)
		}
		result.Advances++

		if err := c.sleep(ctx, c.config.AdvanceDelay.Pick()); err != nil {
			return fail("wait", err)
		}
	}
}

// sleepContext 可被取消的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
