package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKeywords 未提供搜索关键词
	ErrMissingKeywords = errors.New("搜索关键词不能为空")
	// ErrInvalidDateRange 日期范围不合法
	ErrInvalidDateRange = errors.New("日期范围不合法")
	// ErrNoDeadline 调用方没有给运行设置超时
	ErrNoDeadline = errors.New("运行上下文必须设置超时时间")
	// ErrBrowserCrashed 浏览器在操作过程中崩溃
	ErrBrowserCrashed = errors.New("浏览器崩溃")
	// ErrGridNotFound 等待网格容器超时
	ErrGridNotFound = errors.New("未找到广告网格")
)

// ViewFault 视图(观测/推进)不可用
// 会终止当前收集并触发部分保存
type ViewFault struct {
	Op  string // observe, advance, wait, open
	Err error
}

// Error 实现error接口
func (e *ViewFault) Error() string {
	return fmt.Sprintf("视图故障 [%s]: %v", e.Op, e.Err)
}

// Unwrap 支持errors.Is/As
func (e *ViewFault) Unwrap() error {
	return e.Err
}

// NewViewFault 包装视图错误,已经是ViewFault的直接返回
func NewViewFault(op string, err error) error {
	if err == nil {
		return nil
	}
	var vf *ViewFault
	if errors.As(err, &vf) {
		return err
	}
	return &ViewFault{Op: op, Err: err}
}

// ProbeFault 单个域名的探测失败,不影响整体运行
type ProbeFault struct {
	Hostname string
	Err      error
}

// Error 实现error接口
func (e *ProbeFault) Error() string {
	return fmt.Sprintf("域名探测失败 [%s]: %v", e.Hostname, e.Err)
}

// Unwrap 支持errors.Is/As
func (e *ProbeFault) Unwrap() error {
	return e.Err
}

// ConfigError 配置错误,在任何运行开始前返回
type ConfigError struct {
	// Field 出错的配置项或配置文件路径
	Field string

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置错误 [%s]: %v", e.Field, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
