package utils

import (
	"net/http"
	"sort"
	"strings"
)

var (
	// SensitiveKeywords 敏感头部名称关键字
	SensitiveKeywords = []string{
		"authorization",
		"cookie",
		"token",
		"key",
		"secret",
		"password",
		"credential",
		"session",
	}
)

// HeaderRedactor 头部脱敏器
type HeaderRedactor struct {
	sensitiveKeywords []string
}

// NewHeaderRedactor 创建头部脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitiveHeader 根据头部名称关键字判断是否敏感
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range hr.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 脱敏单个头部值
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}

	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}

	// Cookie 只保留名称
	if strings.Contains(strings.ToLower(name), "cookie") && strings.Contains(value, "=") {
		return redactCookie(value)
	}

	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}

	return "***"
}

// redactCookie "a=1; b=2" -> "a=***; b=***"
func redactCookie(value string) string {
	var parts []string
	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, _, _ := strings.Cut(pair, "=")
		parts = append(parts, strings.TrimSpace(name)+"=***")
	}
	return strings.Join(parts, "; ")
}

// Redact 脱敏整个http.Header,返回可直接写入日志的map
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string)
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = hr.RedactHeaderValue(name, values[0])
	}
	return result
}

// RedactToString 格式: "Header1: value1, Header2: value2",按名称排序
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	redacted := hr.Redact(headers)
	names := make([]string, 0, len(redacted))
	for name := range redacted {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+redacted[name])
	}
	return strings.Join(parts, ", ")
}
