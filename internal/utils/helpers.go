package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadKeywordsFromFile 从文件中读取关键词列表,每行一组
// 空行和 # 开头的注释行被忽略,重复的关键词只保留第一次出现
func ReadKeywordsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开关键词文件失败: %w", err)
	}
	defer file.Close()

	keywords := make([]string, 0)
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.Join(strings.Fields(scanner.Text()), " ")

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := strings.ToLower(line)
		if seen[key] {
			Debugf("跳过重复关键词 (行 %d): %s", lineNum, line)
			continue
		}
		seen[key] = true
		keywords = append(keywords, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取关键词文件失败: %w", err)
	}

	if len(keywords) == 0 {
		return nil, fmt.Errorf("关键词文件中没有有效的关键词")
	}

	Infof("从文件加载了 %d 组关键词", len(keywords))
	return keywords, nil
}

// SplitList 拆分逗号分隔的配置值
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
