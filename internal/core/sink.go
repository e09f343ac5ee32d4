package core

import (
	"context"
	"errors"

	"github.com/RecoveryAshes/AdScout/internal/models"
)

// Sink 报告的保存位置
type Sink interface {
	// Save 保存报告,返回可读的位置描述(文件路径、表名等)
	Save(ctx context.Context, bundle *models.ReportBundle) (string, error)
}

// SnapshotSink 可保存错误截图的Sink
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, keywords string, png []byte) (string, error)
}

// MultiSink 依次写入多个Sink
// 返回第一个成功的位置,所有错误合并返回
type MultiSink []Sink

// Save 实现Sink
func (m MultiSink) Save(ctx context.Context, bundle *models.ReportBundle) (string, error) {
	var (
		location string
		errs     []error
	)
	for _, sink := range m {
		loc, err := sink.Save(ctx, bundle)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if location == "" {
			location = loc
		}
	}
	return location, errors.Join(errs...)
}

// SaveSnapshot 交给第一个支持截图的Sink
func (m MultiSink) SaveSnapshot(ctx context.Context, keywords string, png []byte) (string, error) {
	for _, sink := range m {
		if ss, ok := sink.(SnapshotSink); ok {
			return ss.SaveSnapshot(ctx, keywords, png)
		}
	}
	return "", nil
}
