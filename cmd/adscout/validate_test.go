package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/AdScout/internal/core"
)

func validConfig() *core.Config {
	return &core.Config{
		Search: core.SearchSection{
			Keywords: "zapatillas",
			BaseURL:  "https://www.facebook.com/ads/library/",
		},
		Collect: core.CollectSection{
			StagnationThreshold: 3,
			RunTimeout:          30 * time.Minute,
		},
	}
}

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *core.Config)
		wantErr bool
	}{
		{"有效配置", func(c *core.Config) {}, false},
		{"缺少关键词", func(c *core.Config) { c.Search.Keywords = "  " }, true},
		{"只有开始日期", func(c *core.Config) { c.Search.StartDate = "2024-3-1" }, true},
		{"日期颠倒", func(c *core.Config) {
			c.Search.StartDate = "2024-3-5"
			c.Search.EndDate = "2024-3-1"
		}, true},
		{"有效日期", func(c *core.Config) {
			c.Search.StartDate = "2024-3-1"
			c.Search.EndDate = "2024-03-31"
		}, false},
		{"无效搜索地址", func(c *core.Config) { c.Search.BaseURL = "ftp://example.com" }, true},
		{"超时过长", func(c *core.Config) { c.Collect.RunTimeout = 48 * time.Hour }, true},
		{"停滞阈值为0", func(c *core.Config) { c.Collect.StagnationThreshold = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateFlags(cfg, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFlags_KeywordFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.txt")
	if err := os.WriteFile(path, []byte("zapatillas\nmochilas\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := validConfig()
	cfg.Search.Keywords = ""
	if err := ValidateFlags(cfg, path); err != nil {
		t.Errorf("关键词文件存在时不需要 --keywords: %v", err)
	}
	if err := ValidateFlags(cfg, filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("文件不存在时应返回错误")
	}
	if err := ValidateKeywordFile(dir); err == nil {
		t.Error("目录应返回错误")
	}
}
