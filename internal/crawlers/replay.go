package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

// ReplayView 回放本地保存的网格HTML快照
// 目录中的 .html 文件按文件名排序,每次推进切换到下一个文件,到最后一个后保持不变
type ReplayView struct {
	files    []string
	selector string
	base     *url.URL

	mu    sync.Mutex
	index int
}

// NewReplayView 读取目录下的快照文件列表
func NewReplayView(dir, selector, baseURL string) (*ReplayView, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取快照目录失败: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".html" || ext == ".htm" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("快照目录中没有HTML文件: %s", dir)
	}
	sort.Strings(files)

	var base *url.URL
	if baseURL != "" {
		if base, err = url.Parse(baseURL); err != nil {
			return nil, fmt.Errorf("解析基础地址失败: %w", err)
		}
	}

	utils.Infof("📂 回放模式: %d 个快照文件 (%s)", len(files), dir)
	return &ReplayView{files: files, selector: selector, base: base}, nil
}

// ObserveGrid 解析当前快照文件
func (v *ReplayView) ObserveGrid(ctx context.Context) (*models.GridSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewViewFault("observe", err)
	}

	v.mu.Lock()
	path := v.files[v.index]
	v.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewViewFault("observe", err)
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return nil, models.NewViewFault("observe", fmt.Errorf("解析快照失败 [%s]: %w", path, err))
	}

	return ParseGridDocument(goquery.NewDocumentFromNode(root), v.selector, v.base), nil
}

// AdvanceView 切换到下一个快照
func (v *ReplayView) AdvanceView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return models.NewViewFault("advance", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.index < len(v.files)-1 {
		v.index++
		utils.Debugf("回放快照: %s", filepath.Base(v.files[v.index]))
	}
	return nil
}
