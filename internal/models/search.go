package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseSearchURL 广告库搜索页
	DefaultBaseSearchURL = "https://www.facebook.com/ads/library/"
	// DefaultCountry 默认投放国家
	DefaultCountry = "CL"
)

// SearchParams 一次搜索的参数
type SearchParams struct {
	Keywords  string
	StartDate string // YYYY-M-D 或 YYYY-MM-DD,可为空
	EndDate   string
	Country   string
	BaseURL   string
}

// HasDateRange 起止日期都提供时才生效
func (p SearchParams) HasDateRange() bool {
	return p.StartDate != "" && p.EndDate != ""
}

// Validate 检查关键词与日期
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.Keywords) == "" {
		return &ConfigError{Field: "search.keywords", Cause: ErrMissingKeywords}
	}
	if p.StartDate == "" && p.EndDate == "" {
		return nil
	}
	start, err := ParseDate(p.StartDate)
	if err != nil {
		return &ConfigError{Field: "search.start_date", Cause: err}
	}
	end, err := ParseDate(p.EndDate)
	if err != nil {
		return &ConfigError{Field: "search.end_date", Cause: err}
	}
	if end.Before(start) {
		return &ConfigError{Field: "search.end_date", Cause: fmt.Errorf("%w: 结束日期早于开始日期", ErrInvalidDateRange)}
	}
	return nil
}

// SearchURL 关键词搜索地址
func (p SearchParams) SearchURL() string {
	return p.QueryURL(p.Keywords)
}

// QueryURL 以任意查询词(关键词或域名)构造搜索地址,沿用当前的国家与日期范围
func (p SearchParams) QueryURL(query string) string {
	base := p.BaseURL
	if base == "" {
		base = DefaultBaseSearchURL
	}
	country := p.Country
	if country == "" {
		country = DefaultCountry
	}

	params := url.Values{}
	params.Set("active_status", "active")
	params.Set("ad_type", "all")
	params.Set("country", country)
	params.Set("is_targeted_country", "false")
	params.Set("media_type", "all")
	params.Set("q", query)
	params.Set("search_type", "keyword_unordered")

	if p.HasDateRange() {
		params.Set("start_date[min]", FormatDate(p.StartDate))
		params.Set("start_date[max]", FormatDate(p.EndDate))
	}

	return base + "?" + params.Encode()
}

// Config 报告中记录的搜索配置
func (p SearchParams) Config() SearchConfig {
	sc := SearchConfig{
		BaseSearchURL: p.SearchURL(),
		Country:       p.Country,
	}
	if sc.Country == "" {
		sc.Country = DefaultCountry
	}
	if p.StartDate != "" {
		d := FormatDate(p.StartDate)
		sc.StartDate = &d
	}
	if p.EndDate != "" {
		d := FormatDate(p.EndDate)
		sc.EndDate = &d
	}
	return sc
}

// FormatDate 将 YYYY-M-D 补零为 YYYY-MM-DD,格式不符时原样返回
func FormatDate(s string) string {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return s
	}
	for i := 1; i < 3; i++ {
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return strings.Join(parts, "-")
}

// ParseDate 解析补零后的日期
func ParseDate(s string) (time.Time, error) {
	formatted := FormatDate(s)
	t, err := time.Parse(time.DateOnly, formatted)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateRange, s)
	}
	return t, nil
}

// Slugify 将关键词转换为文件名前缀
// 小写后把所有非 [a-z0-9] 的连续字符替换为 "-",并去掉首尾的 "-"
func Slugify(keywords string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(keywords) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
		}
		dash = true
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "search"
	}
	return slug
}

// ParseVersion 解析文件名中 "_v<N>" 之后的版本号
func ParseVersion(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
