package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "/dashboard/upload", want: "/dashboard/upload"},
		{name: "control characters", in: "/a\x00b\x1bc", want: "/abc"},
		{name: "invalid utf8", in: "/a\xffb", want: "/ab"},
		{name: "truncated", in: "/" + strings.Repeat("x", MaxPathLength+10), want: "/" + strings.Repeat("x", MaxPathLength-1) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizePath(tt.in); got != tt.want {
				t.Errorf("SanitizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "tags.csv", want: "tags.csv"},
		{in: `C:\Users\ada\tags.xlsx`, want: "tags.xlsx"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: "", want: ""},
		{in: "/", want: ""},
		{in: "a\nb.csv", want: "a\nb.csv"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "ada@example.com", want: "a***@example.com"},
		{in: "not-an-email", want: "not-an-email"},
		{in: "@example.com", want: "@example.com"},
	}
	for _, tt := range tests {
		if got := MaskEmail(tt.in); got != tt.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if got := SanitizeError(nil); got != "" {
		t.Errorf("SanitizeError(nil) = %q", got)
	}
	long := errors.New(strings.Repeat("e", MaxErrorMessageLength+1))
	if got := SanitizeError(long); len(got) != MaxErrorMessageLength+3 {
		t.Errorf("SanitizeError() length = %d", len(got))
	}
}
