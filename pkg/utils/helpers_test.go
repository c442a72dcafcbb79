package utils

import (
	"testing"
	"unicode/utf8"
)

func TestGenerateVerificationCode(t *testing.T) {
	for _, length := range []int{4, 6, 8} {
		code, err := GenerateVerificationCode(length)
		if err != nil {
			t.Fatalf("GenerateVerificationCode(%d) error: %v", length, err)
		}
		if len(code) != length {
			t.Errorf("GenerateVerificationCode(%d) = %q; want %d digits", length, code, length)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Errorf("GenerateVerificationCode(%d) = %q; contains non-digit %q", length, code, r)
			}
		}
	}
}

func TestSanitizeEmail(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"User@Example.COM", "user@example.com"},
		{"  a@x.com \n", "a@x.com"},
		{"a@x.com", "a@x.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			actual := SanitizeEmail(tc.input)
			if actual != tc.expected {
				t.Errorf("SanitizeEmail(%q) = %q; want %q", tc.input, actual, tc.expected)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"cut ascii", "hello", 3, "hel"},
		{"cut counts runes not bytes", "héllo wörld", 7, "héllo w"},
		{"no broken rune at the cut", "日本語のテキスト", 3, "日本語"},
		{"empty", "", 5, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := TruncateString(tc.input, tc.limit)
			if actual != tc.expected {
				t.Errorf("TruncateString(%q, %d) = %q; want %q", tc.input, tc.limit, actual, tc.expected)
			}
			if !utf8.ValidString(actual) {
				t.Errorf("TruncateString(%q, %d) = %q; not valid UTF-8", tc.input, tc.limit, actual)
			}
		})
	}
}

func TestBlurEmailAddress(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"a@x.com", "a****@x.com"},
		{"alice@example.com", "a****@example.com"},
		{"not-an-email", "not-an-email"},
		{"@x.com", "@x.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			actual := BlurEmailAddress(tc.input)
			if actual != tc.expected {
				t.Errorf("BlurEmailAddress(%q) = %q; want %q", tc.input, actual, tc.expected)
			}
		})
	}
}
