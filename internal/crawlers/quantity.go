package crawlers

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// quantityPattern 单位(英语/西语/葡语)前的第一个整数,允许千位分隔符
var quantityPattern = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*(?:ads?|anuncios?|anúncios?)\b`)

// IsQuantityText 文本是否是 ParseQuantity 能读出数字的数量声明
// "Ver anuncio" 这类只有单位的文字不算
func IsQuantityText(text string) bool {
	return quantityPattern.MatchString(norm.NFC.String(text))
}

// ParseQuantity 解析声明数量,如 "12 ads" -> 12, "1.234 anuncios" -> 1234
// 找不到单位前的整数时返回1
func ParseQuantity(text string) int {
	m := quantityPattern.FindStringSubmatch(norm.NFC.String(text))
	if m == nil {
		return 1
	}
	digits := strings.NewReplacer(",", "", ".", "").Replace(m[1])
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 1
	}
	return n
}
