package core

import (
	"context"
	"testing"

	"github.com/RecoveryAshes/AdScout/internal/models"
)

// plainSink 只保存报告,不支持截图
type plainSink struct {
	saved int
}

func (s *plainSink) Save(ctx context.Context, bundle *models.ReportBundle) (string, error) {
	s.saved++
	return "plain://" + string(bundle.Kind), nil
}

func TestMultiSink_Save(t *testing.T) {
	failing := newMemorySink()
	failing.failKind = models.KindAds
	plain := &plainSink{}

	bundle := models.NewAdsBundle("run-1", nil, testSearch(), models.StatusComplete)
	location, err := MultiSink{failing, plain}.Save(context.Background(), bundle)

	if err == nil {
		t.Error("失败的Sink应返回错误")
	}
	if location != "plain://ads" {
		t.Errorf("location = %q, want plain://ads", location)
	}
	if plain.saved != 1 {
		t.Errorf("plain.saved = %d, want 1", plain.saved)
	}
}

func TestMultiSink_SaveSnapshot(t *testing.T) {
	mem := newMemorySink()
	path, err := MultiSink{&plainSink{}, mem}.SaveSnapshot(context.Background(), "zapatos", []byte("png"))
	if err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if path != "mem://zapatos.png" {
		t.Errorf("path = %q", path)
	}

	path, err = MultiSink{&plainSink{}}.SaveSnapshot(context.Background(), "zapatos", []byte("png"))
	if err != nil || path != "" {
		t.Errorf("没有支持截图的Sink时应返回空: %q, %v", path, err)
	}
}
