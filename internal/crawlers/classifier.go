package crawlers

import (
	"net/url"
	"strings"
)

// DefaultExcludedDomains 平台自身、短链与按策略排除的第三方平台
var DefaultExcludedDomains = []string{
	"google.com",
	"whatsapp.com",
	"instagram.com",
	"messenger.com",
	"facebook.com",
	"goo.gl",
	"fb.com",
	"fb.me",
	"t.me",
	"wa.me",
	"m.me",
	"airbnb.com",
	"apple.com",
	"spotify.com",
	"waze.com",
	"wa.link",
}

// LinkClassifier 判断规范化链接是否可以参与聚合
type LinkClassifier struct {
	excluded map[string]struct{}
}

// NewLinkClassifier 以默认排除列表加上extra创建分类器
func NewLinkClassifier(extra []string) *LinkClassifier {
	c := &LinkClassifier{excluded: make(map[string]struct{})}
	for _, d := range append(append([]string(nil), DefaultExcludedDomains...), extra...) {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			c.excluded[d] = struct{}{}
		}
	}
	return c
}

// IsEligible 主机名等于或属于排除域名的子域时不合格,无法解析的链接同样不合格
func (c *LinkClassifier) IsEligible(canonicalURL string) bool {
	host, ok := Hostname(canonicalURL)
	if !ok {
		return false
	}
	return !c.IsExcludedHost(host)
}

// IsExcludedHost 逐级向上检查主机名的每个后缀
func (c *LinkClassifier) IsExcludedHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for {
		if _, ok := c.excluded[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
}

// Hostname 取出http(s)链接的小写主机名
func Hostname(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}
