package utils

import (
	"net/http"
	"strings"
	"testing"
)

func TestHeaderValidator_ValidateName(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		expectError bool
	}{
		{"合法名称-字母", "User-Agent", false},
		{"合法名称-数字", "X-Request-ID-123", false},
		{"合法名称-单字符", "X", false},
		{"非法名称-空格", "User Agent", true},
		{"非法名称-下划线", "User_Agent", true},
		{"非法名称-特殊字符", "User@Agent", true},
		{"非法名称-空字符串", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateName(tt.headerName)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_ValidateValue(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法值-ASCII", "User-Agent", "Mozilla/5.0", false},
		{"合法值-空字符串", "X-Empty", "", false},
		{"合法值-最大长度", "X-Max", strings.Repeat("a", MaxHeaderValueLength), false},
		{"非法值-超长", "X-TooLong", strings.Repeat("a", MaxHeaderValueLength+1), true},
		{"非法值-控制字符", "X-Bad", "value\x00with\x01null", true},
		{"非法值-非ASCII", "Accept-Language", "español", true},
		{"Cookie-合法", "Cookie", "c_user=123; xs=abc%3D", false},
		{"Cookie-结尾分号", "Cookie", "c_user=123;", false},
		{"Cookie-缺少等号", "Cookie", "c_user=123; broken", true},
		{"Cookie-空名称", "cookie", "=value", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateValue(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_ValidateHeader(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法头部", "Accept-Language", "es-CL,es;q=0.9", false},
		{"禁止头部-Host", "Host", "example.com", true},
		{"禁止头部-Content-Length", "Content-Length", "123", true},
		{"禁止头部-不区分大小写", "host", "example.com", true},
		{"非法名称", "User Agent", "value", true},
		{"非法值", "User-Agent", "value\x00bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_Validate(t *testing.T) {
	validator := NewHeaderValidator()

	t.Run("合法的http.Header", func(t *testing.T) {
		headers := http.Header{
			"User-Agent":      []string{"Mozilla/5.0"},
			"Accept-Language": []string{"es-CL"},
			"Cookie":          []string{"c_user=1"},
		}
		if err := validator.Validate(headers); err != nil {
			t.Errorf("期望无错误, 实际错误=%v", err)
		}
	})

	t.Run("包含禁止头部", func(t *testing.T) {
		headers := http.Header{
			"User-Agent": []string{"Mozilla/5.0"},
			"Host":       []string{"example.com"},
		}
		if err := validator.Validate(headers); err == nil {
			t.Error("期望返回错误, 但无错误")
		}
	})
}

func TestHeaderRedactor(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"Bearer", "Authorization", "Bearer token123", "Bearer ***"},
		{"Cookie只保留名称", "Cookie", "c_user=100012; xs=secretvalue", "c_user=***; xs=***"},
		{"长密钥", "X-Api-Key", "key12345678", "key1***5678"},
		{"短密钥", "X-Token", "abc", "***"},
		{"非敏感", "Accept-Language", "es-CL", "es-CL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			headers.Set(tt.header, tt.value)
			if got := redactor.Redact(headers)[http.CanonicalHeaderKey(tt.header)]; got != tt.want {
				t.Errorf("Redact(%s: %s) = %q, want %q", tt.header, tt.value, got, tt.want)
			}
		})
	}

	t.Run("字符串按名称排序", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Cookie", "a=1")
		headers.Set("Accept", "*/*")
		if got := redactor.RedactToString(headers); got != "Accept: */*, Cookie: a=***" {
			t.Errorf("RedactToString() = %q", got)
		}
	})
}
