package models

// Anchor 网格条目中的一个链接
type Anchor struct {
	Href  string `json:"href"`  // 原始href(视图已解析为绝对地址)
	Label string `json:"label"` // 链接内第一个span的文本,没有则为空
}

// GridItem 网格容器的一个子元素(一条广告)
type GridItem struct {
	Anchors []Anchor `json:"anchors"`
	Strong  []string `json:"strong"` // 条目内所有strong元素的文本,按文档顺序
}

// GridSnapshot 对当前网格容器的一次观测
// nil 表示页面上不存在网格容器
type GridSnapshot struct {
	Items []GridItem `json:"items"`
}

// Len 返回快照中的条目数,nil安全
func (s *GridSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Entry 从网格中提取出的一条广告
// 每一轮都会从完整网格重新提取,提取后不再修改
type Entry struct {
	Title    string   `json:"title"`
	Quantity string   `json:"quantity"` // 声明数量原文,如 "12 ads"
	Links    []string `json:"links"`    // 规范化且合格的外链,保持出现顺序
}

// DefaultQuantityText 条目没有声明数量时使用的文本
const DefaultQuantityText = "1 ad"

// CollectLinks 展开一组条目中的全部链接
func CollectLinks(entries []Entry) []string {
	var links []string
	for _, e := range entries {
		links = append(links, e.Links...)
	}
	return links
}
