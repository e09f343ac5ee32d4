package utils

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/markdown"
	"github.com/schollz/progressbar/v3"

	"github.com/RecoveryAshes/AdScout/internal/models"
)

// csvHeaders 各类报告的CSV表头
var csvHeaders = map[models.BundleKind][]string{
	models.KindDomains:  {"Domain", "Total Ads", "Search URL"},
	models.KindProducts: {"Product URL", "Total Ads", "Search URL"},
	models.KindAds:      {"Title", "Quantity", "Links"},
}

// FileReporter 把报告写入 <outputDir>/<kind>/ 目录
// 每次保存生成 JSON、CSV、Markdown 三个文件,文件名 <slug>_<YYYY-MM-DD>_v<N>
type FileReporter struct {
	outputDir string
	markdown  bool
	now       func() time.Time

	mu sync.Mutex
	// 最近一次广告报告的文件名前缀,截图沿用它
	lastAdsBase map[string]string
}

// NewFileReporter 创建文件报告器
func NewFileReporter(outputDir string, writeMarkdown bool) *FileReporter {
	return &FileReporter{
		outputDir:   outputDir,
		markdown:    writeMarkdown,
		now:         time.Now,
		lastAdsBase: make(map[string]string),
	}
}

// Save 保存报告,返回JSON文件路径
func (r *FileReporter) Save(ctx context.Context, bundle *models.ReportBundle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.outputDir, string(bundle.Kind))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	base, err := r.nextBase(dir, bundle.SearchKeywords)
	if err != nil {
		return "", err
	}

	data, err := bundle.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}
	jsonPath := filepath.Join(dir, base+".json")
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	csvPath := filepath.Join(dir, base+".csv")
	if err := writeCSV(csvPath, bundle); err != nil {
		return jsonPath, err
	}

	if r.markdown {
		mdPath := filepath.Join(dir, base+".md")
		if err := writeMarkdown(mdPath, bundle); err != nil {
			return jsonPath, err
		}
	}

	if bundle.Kind == models.KindAds {
		r.lastAdsBase[bundle.SearchKeywords] = base
	}

	Infof("💾 %s 报告已保存 (%s): %s", bundle.Kind, bundle.Status, jsonPath)
	return jsonPath, nil
}

// SaveSnapshot 保存错误截图到 ads/<base>.png
func (r *FileReporter) SaveSnapshot(ctx context.Context, keywords string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.outputDir, string(models.KindAds))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建截图目录失败: %w", err)
	}

	base, ok := r.lastAdsBase[keywords]
	if !ok {
		var err error
		if base, err = r.nextBase(dir, keywords); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, base+".png")
	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", fmt.Errorf("写入截图失败: %w", err)
	}
	Infof("📸 错误截图已保存: %s", path)
	return path, nil
}

// nextBase 返回 <slug>_<date>_v<N>,N 为目录中同前缀已有的最大版本+1
func (r *FileReporter) nextBase(dir, keywords string) (string, error) {
	prefix := models.Slugify(keywords) + "_" + r.now().Format(time.DateOnly)
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_v(\d+)\.`)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("读取报告目录失败: %w", err)
	}

	maxVersion := 0
	for _, entry := range entries {
		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if v, ok := models.ParseVersion(m[1]); ok && v > maxVersion {
			maxVersion = v
		}
	}
	return fmt.Sprintf("%s_v%d", prefix, maxVersion+1), nil
}

// LoadBundle 读取之前保存的JSON报告
func LoadBundle(path string) (*models.ReportBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取报告失败: %w", err)
	}
	var bundle models.ReportBundle
	if err := bundle.FromJSON(data); err != nil {
		return nil, fmt.Errorf("解析报告失败 [%s]: %w", path, err)
	}
	return &bundle, nil
}

// writeCSV 表头之后逐行写入,引号转义交给encoding/csv
func writeCSV(path string, bundle *models.ReportBundle) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{csvHeaders[bundle.Kind]}
	if bundle.Kind == models.KindAds {
		for _, ad := range bundle.Ads {
			rows = append(rows, []string{ad.Title, ad.Quantity, strings.Join(ad.Links, " | ")})
		}
	} else {
		for _, key := range models.SortedKeys(bundle.Records) {
			rec := bundle.Records[key]
			rows = append(rows, []string{rec.URL, strconv.Itoa(rec.TotalAds), rec.SearchURL})
		}
	}

	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("生成CSV失败: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	return nil
}

// writeMarkdown 生成便于阅读的摘要
func writeMarkdown(path string, bundle *models.ReportBundle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建Markdown文件失败: %w", err)
	}
	defer f.Close()

	md := markdown.NewMarkdown(f)
	md.H1(fmt.Sprintf("AdScout %s: %s", bundle.Kind, bundle.SearchKeywords))
	md.PlainText("")

	dateRange := "-"
	if bundle.SearchConfig.StartDate != nil && bundle.SearchConfig.EndDate != nil {
		dateRange = *bundle.SearchConfig.StartDate + " ~ " + *bundle.SearchConfig.EndDate
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + bundle.RunID + "`"},
			{"Timestamp", bundle.Timestamp.Format(time.RFC3339)},
			{"Country", bundle.SearchConfig.Country},
			{"Date Range", dateRange},
			{"Total Ads", strconv.Itoa(bundle.TotalAdsFound)},
			{"Unique Keys", strconv.Itoa(bundle.UniqueKeyCount)},
			{"Status", string(bundle.Status)},
		},
	})
	md.PlainText("")

	if bundle.Status == models.StatusIncomplete {
		md.Warningf("Collection stopped before convergence after %d ads, results are partial.", bundle.TotalAdsFound)
		md.PlainText("")
	}

	md.H2("Results")
	md.PlainText("")
	if bundle.Kind == models.KindAds {
		rows := make([][]string, 0, len(bundle.Ads))
		for _, ad := range bundle.Ads {
			rows = append(rows, []string{orDash(ad.Title), ad.Quantity, strings.Join(ad.Links, "<br>")})
		}
		md.Table(markdown.TableSet{Header: csvHeaders[models.KindAds], Rows: rows})
	} else {
		rows := make([][]string, 0, len(bundle.Records))
		for _, key := range models.SortedKeys(bundle.Records) {
			rec := bundle.Records[key]
			rows = append(rows, []string{rec.URL, strconv.Itoa(rec.TotalAds), rec.SearchURL})
		}
		md.Table(markdown.TableSet{Header: csvHeaders[bundle.Kind], Rows: rows})
	}

	if err := md.Build(); err != nil {
		return fmt.Errorf("写入Markdown失败: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// NewProgressBar 收集进度,条目总数未知时显示为计数器
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("ads"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
