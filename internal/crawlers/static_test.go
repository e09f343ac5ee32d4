package crawlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"

	"github.com/RecoveryAshes/AdScout/internal/models"
)

// gridPage 生成一个带网格容器的页面
func gridPage(next string, items ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="header">x</div><div style="display: grid; gap: 8px">`)
	for _, it := range items {
		fmt.Fprintf(&b, `<div><a href="%s"><span>%s</span></a><strong>2 ads</strong></div>`, it, it)
	}
	b.WriteString(`</div>`)
	if next != "" {
		fmt.Fprintf(&b, `<a rel="next" href="%s">next</a>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func TestParseGridDocument(t *testing.T) {
	page := `<html><body>
<div style="display:grid">
  <div><a href="/p/1?fbclid=2"><span> Producto uno </span></a><strong>Activo</strong><strong>3 anuncios</strong></div>
  <div><a href="https://other.example/x">sin etiqueta</a></div>
</div>
<div style="display: grid"><div><a href="/ignored">ignored</a></div></div>
</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	base, _ := url.Parse("https://shop.example/list")

	snapshot := ParseGridDocument(doc, "", base)
	if snapshot.Len() != 2 {
		t.Fatalf("应只解析第一个网格, got %d 项", snapshot.Len())
	}
	first := snapshot.Items[0]
	if first.Anchors[0].Href != "https://shop.example/p/1?fbclid=2" || first.Anchors[0].Label != "Producto uno" {
		t.Errorf("锚点 = %+v", first.Anchors[0])
	}
	if len(first.Strong) != 2 || first.Strong[1] != "3 anuncios" {
		t.Errorf("strong = %v", first.Strong)
	}
	if snapshot.Items[1].Anchors[0].Label != "" {
		t.Errorf("没有span时标签应为空")
	}

	empty, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><body><p>none</p></body></html>"))
	if ParseGridDocument(empty, "", nil) != nil {
		t.Error("没有网格时应返回nil")
	}
}

func TestStaticView_Pagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") != "es-CL" {
			t.Errorf("请求头未应用: %q", r.Header.Get("Accept-Language"))
		}
		fmt.Fprint(w, gridPage("/page2", "https://a.example/1", "https://b.example/2"))
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		// 指回第一页的链接不会被再次访问
		fmt.Fprint(w, gridPage("/page1", "https://c.example/3"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	view := NewStaticView(srv.URL+"/page1", StaticViewConfig{}, staticHeaders{"Accept-Language": "es-CL"})
	ctx := context.Background()

	snap, err := view.ObserveGrid(ctx)
	if err != nil {
		t.Fatalf("ObserveGrid() error = %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("第一页应有2项, got %d", snap.Len())
	}

	if err := view.AdvanceView(ctx); err != nil {
		t.Fatalf("AdvanceView() error = %v", err)
	}
	snap, _ = view.ObserveGrid(ctx)
	if snap.Len() != 3 {
		t.Fatalf("翻页后应累计3项, got %d", snap.Len())
	}

	// 没有新的下一页,推进不再改变网格
	if err := view.AdvanceView(ctx); err != nil {
		t.Fatalf("AdvanceView() error = %v", err)
	}
	snap, _ = view.ObserveGrid(ctx)
	if snap.Len() != 3 {
		t.Errorf("没有下一页时条目数应保持3, got %d", snap.Len())
	}
}

func TestStaticView_NoGridAndFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>login required</body></html>")
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	snap, err := NewStaticView(srv.URL+"/plain", StaticViewConfig{}, nil).ObserveGrid(context.Background())
	if err != nil || snap != nil {
		t.Errorf("没有网格时应返回 nil, nil; got %v, %v", snap, err)
	}

	_, err = NewStaticView(srv.URL+"/broken", StaticViewConfig{}, nil).ObserveGrid(context.Background())
	var vf *models.ViewFault
	if !errors.As(err, &vf) {
		t.Errorf("抓取失败应返回 *ViewFault, got %v", err)
	}
}

func TestStaticView_Brotli(t *testing.T) {
	var compressed bytes.Buffer
	bw := brotli.NewWriter(&compressed)
	if _, err := bw.Write([]byte(gridPage("", "https://shop.example/br"))); err != nil {
		t.Fatal(err)
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	snap, err := NewStaticView(srv.URL, StaticViewConfig{}, nil).ObserveGrid(context.Background())
	if err != nil {
		t.Fatalf("ObserveGrid() error = %v", err)
	}
	if snap.Len() != 1 || snap.Items[0].Anchors[0].Href != "https://shop.example/br" {
		t.Errorf("brotli页面解析错误: %+v", snap)
	}
}

func TestDecompressResponse(t *testing.T) {
	plain := []byte("<html>ok</html>")

	got, err := decompressResponse("", plain)
	if err != nil || !bytes.Equal(got, plain) {
		t.Errorf("无压缩应原样返回")
	}
	got, err = decompressResponse("x-unknown", plain)
	if err != nil || !bytes.Equal(got, plain) {
		t.Errorf("未知编码应原样返回")
	}
	if _, err := decompressResponse("gzip", plain); err == nil {
		t.Errorf("非gzip数据应返回错误")
	}
}

func TestReplayView(t *testing.T) {
	dir := t.TempDir()
	pages := map[string]string{
		"001.html":  gridPage("", "https://a.example/1"),
		"002.html":  gridPage("", "https://a.example/1", "https://b.example/2"),
		"notes.txt": "ignored",
	}
	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	view, err := NewReplayView(dir, "", "https://shop.example/")
	if err != nil {
		t.Fatalf("NewReplayView() error = %v", err)
	}
	ctx := context.Background()

	counts := []int{}
	for i := 0; i < 3; i++ {
		snap, err := view.ObserveGrid(ctx)
		if err != nil {
			t.Fatalf("ObserveGrid() error = %v", err)
		}
		counts = append(counts, snap.Len())
		if err := view.AdvanceView(ctx); err != nil {
			t.Fatalf("AdvanceView() error = %v", err)
		}
	}
	if fmt.Sprint(counts) != "[1 2 2]" {
		t.Errorf("回放条目数 = %v, want [1 2 2]", counts)
	}

	if _, err := NewReplayView(t.TempDir(), "", ""); err == nil {
		t.Error("空目录应返回错误")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := view.ObserveGrid(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("取消后应返回context.Canceled, got %v", err)
	}
}

// staticHeaders 固定请求头
type staticHeaders map[string]string

func (h staticHeaders) GetHeaders() (http.Header, error) {
	out := make(http.Header)
	for k, v := range h {
		out.Set(k, v)
	}
	return out, nil
}
