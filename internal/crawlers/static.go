package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// DefaultNextSelector 静态页面的下一页链接
const DefaultNextSelector = `a[rel="next"]`

// StaticViewConfig 静态视图配置
type StaticViewConfig struct {
	GridSelector   string
	NextSelector   string
	RequestTimeout time.Duration
	Insecure       bool // 跳过证书验证
}

// StaticView 基于Colly的网格视图
// 服务端渲染的分页列表: 推进视图即抓取下一页并把条目追加到已加载的网格后面,
// 没有下一页时推进不产生任何变化,收集器随之收敛
type StaticView struct {
	collector *colly.Collector
	config    StaticViewConfig
	startURL  string

	mu        sync.Mutex
	items     []models.GridItem
	gridFound bool
	nextURL   string
	visited   map[string]bool
	started   bool
	lastErr   error
}

// NewStaticView 创建静态视图
func NewStaticView(startURL string, config StaticViewConfig, headerProvider models.HeaderProvider) *StaticView {
	if config.GridSelector == "" {
		config.GridSelector = DefaultGridSelector
	}
	if config.NextSelector == "" {
		config.NextSelector = DefaultNextSelector
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}

	c := colly.NewCollector()
	c.AllowURLRevisit = true
	c.SetRequestTimeout(config.RequestTimeout)
	if config.Insecure {
		c.WithTransport(&http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		})
	}

	v := &StaticView{
		collector: c,
		config:    config,
		startURL:  startURL,
		visited:   make(map[string]bool),
	}
	v.setupCallbacks(headerProvider)
	return v
}

// setupCallbacks 设置Colly回调
func (v *StaticView) setupCallbacks(headerProvider models.HeaderProvider) {
	v.collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
		if headerProvider != nil {
			headers, err := headerProvider.GetHeaders()
			if err != nil {
				utils.Warnf("获取HTTP头部失败: %v", err)
			} else {
				for name, values := range headers {
					if len(values) > 0 {
						r.Headers.Set(name, values[0])
					}
				}
			}
		}
		utils.Debugf("访问: %s", r.URL.String())
	})

	v.collector.OnResponse(func(r *colly.Response) {
		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressResponse(encoding, r.Body)
			if err != nil {
				// Colly 已自行解压 gzip 的情况
				utils.Debugf("解压响应失败 [%s] (编码=%s): %v", r.Request.URL, encoding, err)
			} else {
				body = decompressed
			}
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			v.lastErr = fmt.Errorf("解析页面失败 [%s]: %w", r.Request.URL, err)
			return
		}
		v.absorb(doc, r.Request.URL)
	})

	v.collector.OnError(func(r *colly.Response, err error) {
		utils.Warnf("抓取错误 [%s]: %v", r.Request.URL, err)
	})
}

// absorb 把一页的条目追加到已加载网格,并记录下一页地址
func (v *StaticView) absorb(doc *goquery.Document, pageURL *url.URL) {
	snapshot := ParseGridDocument(doc, v.config.GridSelector, pageURL)
	if snapshot != nil {
		v.gridFound = true
		v.items = append(v.items, snapshot.Items...)
	}

	v.nextURL = ""
	if href, ok := doc.Find(v.config.NextSelector).First().Attr("href"); ok {
		next := resolveHref(pageURL, href)
		if !v.visited[next] {
			v.nextURL = next
		}
	}
	utils.Debugf("静态页面 %s: 累计条目 %d, 下一页 %q", pageURL, len(v.items), v.nextURL)
}

// fetch 同步抓取一页
func (v *StaticView) fetch(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.visited[target] = true
	v.lastErr = nil
	if err := v.collector.Visit(target); err != nil {
		return fmt.Errorf("访问页面失败 [%s]: %w", target, err)
	}
	return v.lastErr
}

// ObserveGrid 返回目前已加载的全部条目
func (v *StaticView) ObserveGrid(ctx context.Context) (*models.GridSnapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.started {
		v.started = true
		if err := v.fetch(ctx, v.startURL); err != nil {
			return nil, models.NewViewFault("observe", err)
		}
	}
	if !v.gridFound {
		return nil, nil
	}
	return &models.GridSnapshot{Items: append([]models.GridItem(nil), v.items...)}, nil
}

// AdvanceView 抓取下一页,没有下一页时什么都不做
func (v *StaticView) AdvanceView(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.nextURL == "" {
		return nil
	}
	if err := v.fetch(ctx, v.nextURL); err != nil {
		return models.NewViewFault("advance", err)
	}
	return nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
