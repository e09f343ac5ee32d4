package crawlers

import (
	"net/url"
	"strings"
)

// DefaultTrackingParams 默认移除的跟踪参数
var DefaultTrackingParams = []string{
	"fbclid",
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
}

// RedirectWrapper 把真实目标放在查询参数里的跳转链接
type RedirectWrapper struct {
	Host  string // 如 l.facebook.com
	Path  string // 如 /l.php
	Param string // 携带目标地址的参数,如 u
}

// DefaultRedirectWrappers 默认识别的跳转包装
var DefaultRedirectWrappers = []RedirectWrapper{
	{Host: "l.facebook.com", Path: "/l.php", Param: "u"},
	{Host: "lm.facebook.com", Path: "/l.php", Param: "u"},
}

// Canonicalizer 链接规范化器
// 展开跳转包装并去除跟踪参数,结果可直接比较是否为同一链接
type Canonicalizer struct {
	tracking map[string]struct{}
	wrappers []RedirectWrapper
}

// NewCanonicalizer 创建规范化器,extraParams 会追加到默认跟踪参数之后
func NewCanonicalizer(extraParams []string, extraWrappers []RedirectWrapper) *Canonicalizer {
	c := &Canonicalizer{
		tracking: make(map[string]struct{}),
		wrappers: append(append([]RedirectWrapper(nil), DefaultRedirectWrappers...), extraWrappers...),
	}
	for _, p := range DefaultTrackingParams {
		c.tracking[p] = struct{}{}
	}
	for _, p := range extraParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			c.tracking[p] = struct{}{}
		}
	}
	return c
}

// Canonicalize 返回raw的规范形式
// 无法解析的输入原样返回;对结果再次调用得到相同的字符串
func (c *Canonicalizer) Canonicalize(raw string) string {
	current := strings.TrimSpace(raw)
	// 目标地址是包装链接的参数,每展开一层字符串都变短,循环必然结束
	for {
		u, err := url.Parse(current)
		if err != nil {
			return current
		}
		target, ok := c.unwrap(u)
		if !ok {
			u.RawQuery = c.stripTracking(u.RawQuery)
			return u.String()
		}
		current = target
	}
}

// stripTracking 按 & 拆分查询串,删除跟踪参数
// 其余参数逐字节保留,没有删除时返回原查询串
func (c *Canonicalizer) stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return rawQuery
	}

	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs))
	removed := false
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if _, ok := c.tracking[strings.ToLower(key)]; ok {
			removed = true
			continue
		}
		kept = append(kept, pair)
	}
	if !removed {
		return rawQuery
	}
	return strings.Join(kept, "&")
}

// unwrap 识别跳转包装并取出目标地址
func (c *Canonicalizer) unwrap(u *url.URL) (string, bool) {
	host := strings.ToLower(u.Hostname())
	for _, w := range c.wrappers {
		if host != w.Host || u.Path != w.Path {
			continue
		}
		target := strings.TrimSpace(u.Query().Get(w.Param))
		if target == "" {
			return "", false
		}
		// 部分包装对目标做了二次编码
		if !strings.Contains(target, "://") {
			if decoded, err := url.QueryUnescape(target); err == nil {
				target = decoded
			}
		}
		return target, true
	}
	return "", false
}
