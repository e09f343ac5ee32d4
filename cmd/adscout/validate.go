package main

import (
	"fmt"
	"os"
	"time"

	"github.com/RecoveryAshes/AdScout/internal/core"
	"github.com/RecoveryAshes/AdScout/internal/models"
)

// ValidateFlags 验证合并命令行参数之后的搜索设置
func ValidateFlags(config *core.Config, keywordFile string) error {
	if keywordFile != "" {
		if err := ValidateKeywordFile(keywordFile); err != nil {
			return err
		}
	} else {
		params := config.SearchParams("")
		if err := params.Validate(); err != nil {
			return err
		}
	}

	// 批量模式下每组关键词共用日期范围
	if (config.Search.StartDate == "") != (config.Search.EndDate == "") {
		return fmt.Errorf("开始日期与结束日期需要同时指定")
	}

	if config.Search.BaseURL != "" {
		if err := models.ValidateURL(config.Search.BaseURL); err != nil {
			return fmt.Errorf("无效的搜索地址: %w", err)
		}
	}

	if config.Collect.RunTimeout > 24*time.Hour {
		return fmt.Errorf("运行超时不能超过24小时,当前值: %v", config.Collect.RunTimeout)
	}

	if config.Collect.StagnationThreshold < 1 || config.Collect.StagnationThreshold > 20 {
		return fmt.Errorf("停滞阈值必须在1-20之间,当前值: %d", config.Collect.StagnationThreshold)
	}

	return nil
}

// ValidateKeywordFile 关键词文件必须存在且是普通文件
func ValidateKeywordFile(path string) error {
	if path == "" {
		return fmt.Errorf("关键词文件路径不能为空")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("无法读取关键词文件: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("关键词文件是目录: %s", path)
	}
	return nil
}
