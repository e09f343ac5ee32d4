package crawlers

import (
	"strings"

	"github.com/RecoveryAshes/AdScout/internal/models"
)

// Extractor 从网格快照中提取广告条目
type Extractor struct {
	canonicalizer *Canonicalizer
	classifier    *LinkClassifier
}

// NewExtractor 创建提取器
func NewExtractor(canonicalizer *Canonicalizer, classifier *LinkClassifier) *Extractor {
	return &Extractor{canonicalizer: canonicalizer, classifier: classifier}
}

// Extract 提取快照中的全部条目
// 快照为nil(页面上没有网格)时返回空切片;没有合格外链的条目会被丢弃
func (e *Extractor) Extract(snapshot *models.GridSnapshot) []models.Entry {
	if snapshot == nil {
		return []models.Entry{}
	}

	entries := make([]models.Entry, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		links := e.EligibleLinks(item.Anchors)
		if len(links) == 0 {
			continue
		}
		entries = append(entries, models.Entry{
			Title:    itemTitle(item),
			Quantity: itemQuantity(item),
			Links:    links,
		})
	}
	return entries
}

// EligibleLinks 规范化并过滤锚点,保持锚点顺序
// 图片、标题和按钮常指向同一落地页,每个锚点各算一次
func (e *Extractor) EligibleLinks(anchors []models.Anchor) []string {
	var links []string
	for _, a := range anchors {
		if strings.TrimSpace(a.Href) == "" {
			continue
		}
		link := e.canonicalizer.Canonicalize(a.Href)
		if !e.classifier.IsEligible(link) {
			continue
		}
		links = append(links, link)
	}
	return links
}

// CountAds 按声明数量统计快照中的广告总数,用于域名探测
// 不过滤链接,没有声明数量的条目按1计
func CountAds(snapshot *models.GridSnapshot) int {
	if snapshot == nil {
		return 0
	}
	total := 0
	for _, item := range snapshot.Items {
		total += ParseQuantity(itemQuantity(item))
	}
	return total
}

func itemTitle(item models.GridItem) string {
	for _, a := range item.Anchors {
		if label := strings.TrimSpace(a.Label); label != "" {
			return label
		}
	}
	return ""
}

func itemQuantity(item models.GridItem) string {
	for _, s := range item.Strong {
		if IsQuantityText(s) {
			return strings.TrimSpace(s)
		}
	}
	return models.DefaultQuantityText
}
