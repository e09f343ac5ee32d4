package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadKeywordsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.txt")
	content := "# campañas\nzapatillas running\n\n  crema   facial  \nZapatillas Running\ncuadros decorativos\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadKeywordsFromFile(path)
	if err != nil {
		t.Fatalf("ReadKeywordsFromFile() error = %v", err)
	}
	want := []string{"zapatillas running", "crema facial", "cuadros decorativos"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("关键词 (-want +got):\n%s", diff)
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("# nada\n\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadKeywordsFromFile(empty); err == nil {
		t.Error("没有关键词时应返回错误")
	}
	if _, err := ReadKeywordsFromFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("文件不存在时应返回错误")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" utm_id, ,gclid ,")
	if diff := cmp.Diff([]string{"utm_id", "gclid"}, got); diff != "" {
		t.Errorf("SplitList (-want +got):\n%s", diff)
	}
	if SplitList("") != nil {
		t.Error("空字符串应返回nil")
	}
}
