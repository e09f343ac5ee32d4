package models

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// CollectionState 收集状态机
type CollectionState string

const (
	StateCollecting CollectionState = "collecting" // 收集中
	StateConverged  CollectionState = "converged"  // 连续多轮无增长,已收敛
	StateFailed     CollectionState = "failed"     // 视图故障
)

// ViewMode 网格视图的实现方式
type ViewMode string

const (
	ModeDynamic ViewMode = "dynamic" // go-rod 浏览器滚动
	ModeStatic  ViewMode = "static"  // colly 抓取,按分页推进
	ModeReplay  ViewMode = "replay"  // 回放本地保存的HTML快照
)

// ParseViewMode 解析模式字符串
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ModeDynamic, ModeStatic, ModeReplay:
		return ViewMode(s), nil
	default:
		return "", fmt.Errorf("无效的模式: %s (可选: dynamic, static, replay)", s)
	}
}

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// NewRunID 生成运行ID
func NewRunID() string {
	return uuid.New().String()
}
