package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"

	// DefaultAcceptLanguage 广告库按拉美西语地区展示
	DefaultAcceptLanguage = "es-CL,es;q=0.9,en;q=0.8"
)

// HeaderManager 合并浏览器页面与静态抓取使用的请求头
// 优先级: 默认 < 配置文件 headers 段 < 命令行 -H
// 实现 models.HeaderProvider 接口
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor

	once      sync.Once
	merged    http.Header
	mergedErr error
}

// NewHeaderManager 创建头部管理器
//   - configHeaders: 配置文件 headers 段
//   - cliHeaders: 命令行传递的 "Name: Value" 列表
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:  getDefaultHeaders(),
		config:    make(http.Header),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}

	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}
	hm.cli = cli

	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept-Language": []string{DefaultAcceptLanguage},
	}
}

// Validate 验证顺序: 默认 → 配置 → 命令行
func (hm *HeaderManager) Validate() error {
	for source, headers := range map[string]http.Header{
		"默认":  hm.defaults,
		"配置文件": hm.config,
		"命令行": hm.cli,
	} {
		if err := hm.validator.Validate(headers); err != nil {
			utils.Errorf("%s头部验证失败: %v", source, err)
			return err
		}
	}
	return nil
}

// GetMergedHeaders 按优先级合并头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// HasSession 是否携带了会话Cookie
func (hm *HeaderManager) HasSession() bool {
	return hm.GetMergedHeaders().Get("Cookie") != ""
}

// GetHeaders 实现 HeaderProvider 接口
// 验证只做一次,之后返回同一份合并结果的拷贝
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(func() {
		if err := hm.Validate(); err != nil {
			hm.mergedErr = err
			return
		}
		hm.merged = hm.GetMergedHeaders()
		utils.Debugf("请求头: %s", hm.redactor.RedactToString(hm.merged))
	})
	if hm.mergedErr != nil {
		return nil, hm.mergedErr
	}
	return hm.merged.Clone(), nil
}
