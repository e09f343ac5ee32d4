package core

import (
	"context"
	"time"

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// RunFunc 执行单组关键词的搜索
type RunFunc func(ctx context.Context, keywords string) (*models.RunSummary, error)

// BatchRunner 依次搜索多组关键词
type BatchRunner struct {
	run           RunFunc
	batchDelay    time.Duration
	continueOnErr bool

	sleep func(ctx context.Context, d time.Duration) error
}

// BatchResult 单组关键词的结果
type BatchResult struct {
	Keywords    string
	Success     bool
	Error       error
	Summary     *models.RunSummary
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量搜索摘要
type BatchSummary struct {
	Total         int
	SuccessCount  int
	FailCount     int
	TotalEntries  int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchRunner 创建批量运行器
func NewBatchRunner(run RunFunc, batchDelay time.Duration, continueOnErr bool) *BatchRunner {
	return &BatchRunner{
		run:           run,
		batchDelay:    batchDelay,
		continueOnErr: continueOnErr,
		sleep:         sleepContext,
	}
}

// RunBatch 按顺序处理关键词列表
// 上下文取消后不再开始新的搜索
func (br *BatchRunner) RunBatch(ctx context.Context, keywords []string) *BatchSummary {
	utils.Infof("🚀 开始批量搜索: %d组关键词", len(keywords))

	summary := &BatchSummary{
		Total:   len(keywords),
		Results: make([]BatchResult, 0, len(keywords)),
	}
	startTime := time.Now()

	for i, kw := range keywords {
		if ctx.Err() != nil {
			utils.Warn("批量搜索已取消")
			break
		}

		utils.Infof("==================== [%d/%d] ====================", i+1, len(keywords))
		result := br.runOne(ctx, kw)
		summary.Results = append(summary.Results, result)

		if result.Summary != nil {
			summary.TotalEntries += result.Summary.Entries
		}
		if result.Success {
			summary.SuccessCount++
		} else {
			summary.FailCount++
			utils.Errorf("❌ 搜索失败 [%s]: %v", kw, result.Error)
			if !br.continueOnErr {
				utils.Warn("批量搜索中止 (continue_on_error=false)")
				break
			}
		}

		if i < len(keywords)-1 && br.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一组关键词...", br.batchDelay.Seconds())
			if err := br.sleep(ctx, br.batchDelay); err != nil {
				break
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	br.printSummary(summary)
	return summary
}

func (br *BatchRunner) runOne(ctx context.Context, keywords string) BatchResult {
	result := BatchResult{
		Keywords:    keywords,
		ProcessedAt: time.Now(),
	}
	start := time.Now()

	summary, err := br.run(ctx, keywords)
	result.Summary = summary
	result.Error = err
	result.Success = err == nil
	result.Duration = time.Since(start).Seconds()
	return result
}

// printSummary 打印批量搜索摘要
func (br *BatchRunner) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量搜索摘要")
	utils.Info("==================================================")
	utils.Infof("关键词组数: %d", summary.Total)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📦 广告条目: %d", summary.TotalEntries)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的关键词:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.Keywords, result.Error)
			}
		}
	}
}
