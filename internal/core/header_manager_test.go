package core

import "testing"

func TestHeaderManager_GetMergedHeaders(t *testing.T) {
	t.Run("默认头部存在", func(t *testing.T) {
		hm, err := NewHeaderManager(nil, nil)
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}

		headers := hm.GetMergedHeaders()
		if headers.Get("User-Agent") != DefaultUserAgent {
			t.Error("期望默认User-Agent存在")
		}
		if headers.Get("Accept-Language") != DefaultAcceptLanguage {
			t.Error("期望默认Accept-Language存在")
		}
	})

	t.Run("优先级 默认 < 配置 < 命令行", func(t *testing.T) {
		config := map[string]string{
			"user-agent": "ConfigBot/1.0",
			"x-source":   "config",
			"x-config":   "only-config",
		}
		cli := []string{"X-Source: cli"}

		hm, err := NewHeaderManager(config, cli)
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}

		headers := hm.GetMergedHeaders()
		if got := headers.Get("User-Agent"); got != "ConfigBot/1.0" {
			t.Errorf("User-Agent = %q, want ConfigBot/1.0", got)
		}
		if got := headers.Get("X-Source"); got != "cli" {
			t.Errorf("X-Source = %q, want cli", got)
		}
		if got := headers.Get("X-Config"); got != "only-config" {
			t.Errorf("X-Config = %q, want only-config", got)
		}
		if got := headers.Get("Accept-Language"); got != DefaultAcceptLanguage {
			t.Errorf("Accept-Language = %q", got)
		}
	})

	t.Run("命令行格式错误", func(t *testing.T) {
		if _, err := NewHeaderManager(nil, []string{"NoColon"}); err == nil {
			t.Error("期望格式错误")
		}
	})
}

func TestHeaderManager_GetHeaders(t *testing.T) {
	t.Run("返回拷贝", func(t *testing.T) {
		hm, err := NewHeaderManager(nil, []string{"Cookie: c_user=1; xs=abc"})
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}

		first, err := hm.GetHeaders()
		if err != nil {
			t.Fatalf("GetHeaders() error = %v", err)
		}
		first.Set("Cookie", "changed=1")

		second, _ := hm.GetHeaders()
		if second.Get("Cookie") != "c_user=1; xs=abc" {
			t.Error("修改返回值不应影响后续调用")
		}
		if !hm.HasSession() {
			t.Error("HasSession() 应为true")
		}
	})

	t.Run("禁止的头部", func(t *testing.T) {
		hm, err := NewHeaderManager(map[string]string{"host": "evil.example"}, nil)
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}
		if _, err := hm.GetHeaders(); err == nil {
			t.Error("Host 头部应验证失败")
		}
		// 验证结果被缓存
		if _, err := hm.GetHeaders(); err == nil {
			t.Error("第二次调用同样应返回错误")
		}
	})
}

func TestHeaderManager_GetSafeHeaders(t *testing.T) {
	cli := []string{
		"Authorization: Bearer secret-token-12345",
		"X-API-Key: api-key-67890",
		"Cookie: c_user=100012345; xs=verysecret",
	}
	hm, err := NewHeaderManager(nil, cli)
	if err != nil {
		t.Fatalf("创建HeaderManager失败: %v", err)
	}

	safe := hm.GetSafeHeaders()
	if safe["Authorization"] != "Bearer ***" {
		t.Errorf("Authorization = %q", safe["Authorization"])
	}
	if safe["X-Api-Key"] != "api-***7890" {
		t.Errorf("X-Api-Key 未脱敏: %q", safe["X-Api-Key"])
	}
	if safe["Cookie"] != "c_user=***; xs=***" {
		t.Errorf("Cookie = %q", safe["Cookie"])
	}
	if safe["User-Agent"] != DefaultUserAgent {
		t.Error("非敏感头部不应脱敏")
	}
}
