package models

import (
	"sort"
	"sync"
)

// AggregateRecord 域名或产品的聚合统计
type AggregateRecord struct {
	URL       string `json:"url"`             // 键: 主机名或规范化产品链接
	TotalAds  int    `json:"totalAds"`        // 广告总数
	SearchURL string `json:"searchUrl"`       // 产生该记录的搜索地址
	Title     string `json:"title,omitempty"` // 仅产品记录使用
}

// RecordSet 键到聚合记录的映射,并发安全
//
// 记录在首次写入时创建,之后只会被更新,不会被删除。
// Put 与 Accumulate 分别对应域名与产品两种更新策略:
//   - Put: 创建或整体替换,用于一次探测即得到最终结果的域名统计
//   - Accumulate: 首次使用时创建,之后在原值上累加,用于产品统计
type RecordSet struct {
	mu      sync.RWMutex
	records map[string]*AggregateRecord
	order   []string
}

// NewRecordSet 创建空的记录集
func NewRecordSet() *RecordSet {
	return &RecordSet{records: make(map[string]*AggregateRecord)}
}

// Put 写入key对应的完整记录
func (s *RecordSet) Put(key string, rec AggregateRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.URL == "" {
		rec.URL = key
	}
	if _, ok := s.records[key]; !ok {
		s.order = append(s.order, key)
	}
	r := rec
	s.records[key] = &r
}

// Accumulate 将delta累加到key对应的记录上,记录不存在时先以seed创建
// seed中的TotalAds会被忽略,返回累加后的总数
func (s *RecordSet) Accumulate(key string, delta int, seed AggregateRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		seed.URL = key
		seed.TotalAds = 0
		rec = &seed
		s.records[key] = rec
		s.order = append(s.order, key)
	}
	rec.TotalAds += delta
	return rec.TotalAds
}

// Get 读取记录副本
func (s *RecordSet) Get(key string) (AggregateRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return AggregateRecord{}, false
	}
	return *rec, true
}

// Len 记录数量
func (s *RecordSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Total 所有记录的广告数之和
func (s *RecordSet) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, rec := range s.records {
		total += rec.TotalAds
	}
	return total
}

// Keys 按首次写入顺序返回所有键
func (s *RecordSet) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Snapshot 返回当前记录的拷贝,之后对记录集的修改不会影响返回值
func (s *RecordSet) Snapshot() map[string]AggregateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]AggregateRecord, len(s.records))
	for k, rec := range s.records {
		out[k] = *rec
	}
	return out
}

// KeySet 已处理键的集合,并发安全
type KeySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewKeySet 创建空集合
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]struct{})}
}

// Claim 尝试占用key,只有第一次调用返回true
// 探测前先占用,保证并发下每个键最多处理一次
func (s *KeySet) Claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Has 判断key是否已被占用
func (s *KeySet) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Len 已占用的键数量
func (s *KeySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// SortedKeys 返回排序后的键,用于稳定输出
func SortedKeys(records map[string]AggregateRecord) []string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
