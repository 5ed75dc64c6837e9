package platform

import (
	"strings"
	"testing"
)

func TestResolveTitle_OverrideWins(t *testing.T) {
	got := ResolveTitle("My Pick", "Extracted Title", "Caption", YouTube)
	if got != "My Pick" {
		t.Fatalf("expected override to win, got %q", got)
	}
}

func TestResolveTitle_DescriptionPreferredOnShortForm(t *testing.T) {
	got := ResolveTitle("", "tiktok video #123", "the actual caption", TikTok)
	if got != "the actual caption" {
		t.Fatalf("expected caption, got %q", got)
	}
	got = ResolveTitle("", "Proper Video Title", "some description", YouTube)
	if got != "Proper Video Title" {
		t.Fatalf("expected extracted title, got %q", got)
	}
}

func TestResolveTitle_FallbackDefault(t *testing.T) {
	if got := ResolveTitle("", "", "", YouTube); got != "download" {
		t.Fatalf("expected default title, got %q", got)
	}
}

func TestSanitizeTitle(t *testing.T) {
	got := SanitizeTitle("My/Video:Test\n2024")
	if got != "My_Video_Test 2024" {
		t.Fatalf("SanitizeTitle = %q", got)
	}
	if strings.ContainsAny(got, "/:\n") {
		t.Fatalf("unsafe characters remain in %q", got)
	}
}

func TestSanitizeTitle_Truncates(t *testing.T) {
	long := strings.Repeat("a", 119) + " tail that goes past the limit"
	got := SanitizeTitle(long)
	if len([]rune(got)) > 120 {
		t.Fatalf("title longer than 120 runes: %d", len([]rune(got)))
	}
	if strings.HasSuffix(got, " ") {
		t.Fatalf("trailing whitespace survived truncation: %q", got)
	}
}
