package crawlers

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/AdScout/internal/models"
)

// DefaultGridSelector 静态HTML中无法计算样式,只能按内联样式识别网格容器
const DefaultGridSelector = `[style*="display: grid"], [style*="display:grid"]`

// ParseGridDocument 从HTML文档中解析第一个网格容器
// 找不到容器时返回nil;相对链接按base解析为绝对地址
func ParseGridDocument(doc *goquery.Document, selector string, base *url.URL) *models.GridSnapshot {
	if selector == "" {
		selector = DefaultGridSelector
	}
	container := doc.Find(selector).First()
	if container.Length() == 0 {
		return nil
	}

	snapshot := &models.GridSnapshot{Items: []models.GridItem{}}
	container.Children().Each(func(_ int, child *goquery.Selection) {
		snapshot.Items = append(snapshot.Items, parseGridItem(child, base))
	})
	return snapshot
}

func parseGridItem(s *goquery.Selection, base *url.URL) models.GridItem {
	item := models.GridItem{}

	s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		item.Anchors = append(item.Anchors, models.Anchor{
			Href:  resolveHref(base, href),
			Label: strings.TrimSpace(a.Find("span").First().Text()),
		})
	})

	s.Find("strong").Each(func(_ int, strong *goquery.Selection) {
		item.Strong = append(item.Strong, strings.TrimSpace(strong.Text()))
	})

	return item
}

// resolveHref 按页面地址解析相对链接,失败时保留原值交给规范化器处理
func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
