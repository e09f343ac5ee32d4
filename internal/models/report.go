package models

import (
	"encoding/json"
	"time"
)

// BundleKind 报告类型
type BundleKind string

const (
	KindAds      BundleKind = "ads"      // 广告条目
	KindDomains  BundleKind = "domains"  // 域名统计
	KindProducts BundleKind = "products" // 产品统计
)

// RunStatus 报告完成状态
type RunStatus string

const (
	StatusComplete   RunStatus = "completed"  // 正常收敛
	StatusIncomplete RunStatus = "incomplete" // 故障后的部分结果
)

// SearchConfig 报告中的搜索配置快照
type SearchConfig struct {
	BaseSearchURL string  `json:"baseSearchUrl"`
	StartDate     *string `json:"startDate"`
	EndDate       *string `json:"endDate"`
	Country       string  `json:"country"`
}

// ReportBundle 一次保存的完整内容
// 在保存时根据记录快照构造,构造后不再修改
type ReportBundle struct {
	RunID          string                     `json:"runId"`
	Kind           BundleKind                 `json:"kind"`
	Records        map[string]AggregateRecord `json:"records"`
	Ads            []Entry                    `json:"ads,omitempty"`
	Timestamp      time.Time                  `json:"timestamp"`
	SearchKeywords string                     `json:"searchKeywords"`
	SearchConfig   SearchConfig               `json:"searchConfig"`
	TotalAdsFound  int                        `json:"totalAdsFound"`
	UniqueKeyCount int                        `json:"uniqueKeyCount"`
	Status         RunStatus                  `json:"status"`
}

// NewRecordBundle 由域名或产品记录构造报告
func NewRecordBundle(runID string, kind BundleKind, records map[string]AggregateRecord, params SearchParams, status RunStatus) *ReportBundle {
	total := 0
	for _, rec := range records {
		total += rec.TotalAds
	}
	return &ReportBundle{
		RunID:          runID,
		Kind:           kind,
		Records:        records,
		Timestamp:      time.Now().UTC(),
		SearchKeywords: params.Keywords,
		SearchConfig:   params.Config(),
		TotalAdsFound:  total,
		UniqueKeyCount: len(records),
		Status:         status,
	}
}

// NewAdsBundle 由广告条目构造报告
// TotalAdsFound 为条目数,UniqueKeyCount 为不同外链数
func NewAdsBundle(runID string, ads []Entry, params SearchParams, status RunStatus) *ReportBundle {
	unique := make(map[string]struct{})
	for _, link := range CollectLinks(ads) {
		unique[link] = struct{}{}
	}
	return &ReportBundle{
		RunID:          runID,
		Kind:           KindAds,
		Ads:            append([]Entry(nil), ads...),
		Timestamp:      time.Now().UTC(),
		SearchKeywords: params.Keywords,
		SearchConfig:   params.Config(),
		TotalAdsFound:  len(ads),
		UniqueKeyCount: len(unique),
		Status:         status,
	}
}

// ToJSON 序列化为JSON
func (b *ReportBundle) ToJSON() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// FromJSON 从JSON反序列化
func (b *ReportBundle) FromJSON(data []byte) error {
	return json.Unmarshal(data, b)
}

// RunSummary 一次运行的汇总
type RunSummary struct {
	RunID      string
	Keywords   string
	State      CollectionState
	Passes     int
	Entries    int
	Domains    int
	Products   int
	FailedHost int
	Duration   time.Duration
	Locations  map[BundleKind]string
	Screenshot string
}
