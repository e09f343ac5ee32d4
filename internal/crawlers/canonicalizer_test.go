package crawlers

import (
	"net/url"
	"strings"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	c := NewCanonicalizer(nil, nil)

	wrapped := "https://l.facebook.com/l.php?u=" + url.QueryEscape("https://shop.example/p/1?utm_source=fb&color=red") + "&h=AT0"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"去除fbclid", "https://shop.example/p?fbclid=abc", "https://shop.example/p"},
		{"去除全部utm参数并保留其他参数", "https://shop.example/p?utm_source=a&utm_medium=b&utm_campaign=c&utm_term=d&utm_content=e&id=7", "https://shop.example/p?id=7"},
		{"参数名大小写不敏感", "https://shop.example/p?FBCLID=1&x=2", "https://shop.example/p?x=2"},
		{"没有跟踪参数时保持原样", "https://shop.example/p?b=2&a=1", "https://shop.example/p?b=2&a=1"},
		{"展开跳转包装", wrapped, "https://shop.example/p/1?color=red"},
		{"移动端跳转包装", "https://lm.facebook.com/l.php?u=https%3A%2F%2Fstore.example%2F%3Ffbclid%3Dz", "https://store.example/"},
		{"二次编码的目标", "https://l.facebook.com/l.php?u=" + url.QueryEscape(url.QueryEscape("https://store.example/x")), "https://store.example/x"},
		{"缺少目标参数的包装保留", "https://l.facebook.com/l.php?h=1", "https://l.facebook.com/l.php?h=1"},
		{"保留片段", "https://shop.example/p?fbclid=1#top", "https://shop.example/p#top"},
		{"无法解析的输入原样返回", "http://[::1", "http://[::1"},
		{"非法转义时仍去除跟踪参数", "https://shop.example/p?q=%zz&fbclid=1", "https://shop.example/p?q=%zz"},
		{"分号分隔的参数逐字保留", "https://shop.example/p?a=1;b=2&fbclid=x", "https://shop.example/p?a=1;b=2"},
		{"编码的参数名", "https://shop.example/p?%66bclid=1&id=3", "https://shop.example/p?id=3"},
		{"删除后不重排其他参数", "https://shop.example/p?z=1&utm_source=a&a=2", "https://shop.example/p?z=1&a=2"},
		{"空字符串", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Canonicalize(tt.in)
			if got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := c.Canonicalize(got); again != got {
				t.Errorf("不满足幂等: %q -> %q", got, again)
			}
		})
	}
}

func TestCanonicalize_StripsFbclidEverywhere(t *testing.T) {
	c := NewCanonicalizer(nil, nil)
	inputs := []string{
		"https://a.example/?fbclid=x",
		"https://a.example/path?x=1&fbclid=x",
		"https://a.example/path?fbclid=x&fbclid=y&z=3",
		"http://a.example:8080/p?fbclid=x#frag",
		"https://a.example/p?a=1;b=2&fbclid=x",
		"https://a.example/p?q=%zz&fbclid=x",
		"https://a.example/p?fbclid=x&q=100%",
	}
	for _, in := range inputs {
		out := c.Canonicalize(in)
		u, err := url.Parse(out)
		if err != nil {
			t.Fatalf("输出无法解析: %q", out)
		}
		if strings.Contains(u.RawQuery, "fbclid") {
			t.Errorf("Canonicalize(%q) = %q 仍包含 fbclid", in, out)
		}
	}
}

func TestCanonicalize_ExtraParams(t *testing.T) {
	c := NewCanonicalizer([]string{"gclid", " "}, []RedirectWrapper{{Host: "r.example", Path: "/l.php", Param: "u"}})

	if got := c.Canonicalize("https://shop.example/?gclid=1&k=v"); got != "https://shop.example/?k=v" {
		t.Errorf("额外跟踪参数未去除: %s", got)
	}

	target := url.QueryEscape("https://shop.example/item?fbclid=9")
	if got := c.Canonicalize("https://r.example/l.php?u=" + target); got != "https://shop.example/item" {
		t.Errorf("自定义跳转包装未展开: %s", got)
	}
}

func TestCanonicalize_DeeplyNestedWrappers(t *testing.T) {
	c := NewCanonicalizer(nil, nil)

	link := "https://shop.example/x?fbclid=1"
	for i := 0; i < 8; i++ {
		host := "l.facebook.com"
		if i%2 == 1 {
			host = "lm.facebook.com"
		}
		link = "https://" + host + "/l.php?u=" + url.QueryEscape(link)
	}

	got := c.Canonicalize(link)
	if got != "https://shop.example/x" {
		t.Fatalf("Canonicalize() = %q, want https://shop.example/x", got)
	}
	if again := c.Canonicalize(got); again != got {
		t.Errorf("不满足幂等: %q -> %q", got, again)
	}
}
