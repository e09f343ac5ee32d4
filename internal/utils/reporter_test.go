package utils

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/RecoveryAshes/AdScout/internal/models"
)

func newTestReporter(t *testing.T) (*FileReporter, string) {
	t.Helper()
	dir := t.TempDir()
	r := NewFileReporter(dir, true)
	r.now = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }
	return r, dir
}

func testParams() models.SearchParams {
	return models.SearchParams{Keywords: "Zapatillas Running", StartDate: "2024-3-1", EndDate: "2024-3-5"}
}

func TestFileReporter_SaveAndLoad(t *testing.T) {
	r, dir := newTestReporter(t)
	ctx := context.Background()

	records := map[string]models.AggregateRecord{
		"shop.example":  {URL: "shop.example", TotalAds: 7, SearchURL: "https://s/?q=shop.example"},
		"store.example": {URL: "store.example", TotalAds: 3, SearchURL: "https://s/?q=store.example"},
	}
	bundle := models.NewRecordBundle("run-1", models.KindDomains, records, testParams(), models.StatusComplete)

	path, err := r.Save(ctx, bundle)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	want := filepath.Join(dir, "domains", "zapatillas-running_2024-03-05_v1.json")
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	loaded, err := LoadBundle(path)
	if err != nil {
		t.Fatalf("LoadBundle() error = %v", err)
	}
	if loaded.UniqueKeyCount != len(loaded.Records) {
		t.Errorf("uniqueKeyCount = %d, 记录数 = %d", loaded.UniqueKeyCount, len(loaded.Records))
	}
	if loaded.TotalAdsFound != 10 || loaded.Status != models.StatusComplete {
		t.Errorf("loaded = %+v", loaded)
	}
	if diff := cmp.Diff(records, loaded.Records); diff != "" {
		t.Errorf("记录不一致 (-want +got):\n%s", diff)
	}
	if *loaded.SearchConfig.StartDate != "2024-03-01" {
		t.Errorf("startDate = %s", *loaded.SearchConfig.StartDate)
	}

	for _, ext := range []string{".csv", ".md"} {
		if _, err := os.Stat(strings.TrimSuffix(path, ".json") + ext); err != nil {
			t.Errorf("缺少 %s 文件: %v", ext, err)
		}
	}
}

func TestFileReporter_VersionIncrements(t *testing.T) {
	r, dir := newTestReporter(t)
	ctx := context.Background()

	// 其他关键词的文件不影响版本号
	other := filepath.Join(dir, "products")
	if err := os.MkdirAll(other, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(other, "zapatillas_2024-03-05_v9.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	bundle := models.NewRecordBundle("run", models.KindProducts, map[string]models.AggregateRecord{}, testParams(), models.StatusIncomplete)
	var names []string
	for i := 0; i < 3; i++ {
		path, err := r.Save(ctx, bundle)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		names = append(names, filepath.Base(path))
	}

	want := []string{
		"zapatillas-running_2024-03-05_v1.json",
		"zapatillas-running_2024-03-05_v2.json",
		"zapatillas-running_2024-03-05_v3.json",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("版本号 (-want +got):\n%s", diff)
	}
}

func TestFileReporter_AdsCSVAndSnapshot(t *testing.T) {
	r, dir := newTestReporter(t)
	ctx := context.Background()

	ads := []models.Entry{
		{Title: `Oferta "2x1", hoy`, Quantity: "3 ads", Links: []string{"https://a.example/1", "https://b.example/2"}},
		{Title: "", Quantity: models.DefaultQuantityText, Links: []string{"https://a.example/1"}},
	}
	bundle := models.NewAdsBundle("run", ads, testParams(), models.StatusIncomplete)
	if bundle.UniqueKeyCount != 2 || bundle.TotalAdsFound != 2 {
		t.Errorf("ads bundle 统计错误: %+v", bundle)
	}

	path, err := r.Save(ctx, bundle)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	f, err := os.Open(strings.TrimSuffix(path, ".json") + ".csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("CSV无法解析: %v", err)
	}
	wantRows := [][]string{
		{"Title", "Quantity", "Links"},
		{`Oferta "2x1", hoy`, "3 ads", "https://a.example/1 | https://b.example/2"},
		{"", "1 ad", "https://a.example/1"},
	}
	if diff := cmp.Diff(wantRows, rows); diff != "" {
		t.Errorf("CSV内容 (-want +got):\n%s", diff)
	}

	png, err := r.SaveSnapshot(ctx, bundle.SearchKeywords, []byte("\x89PNG"))
	if err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if want := filepath.Join(dir, "ads", "zapatillas-running_2024-03-05_v1.png"); png != want {
		t.Errorf("截图路径 = %s, want %s", png, want)
	}
}

func TestFileReporter_CancelledContext(t *testing.T) {
	r, _ := newTestReporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bundle := models.NewAdsBundle("run", nil, testParams(), models.StatusComplete)
	if _, err := r.Save(ctx, bundle); err == nil {
		t.Error("已取消的上下文应返回错误")
	}
}
