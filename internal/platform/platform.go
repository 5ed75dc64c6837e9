package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Platform identifies a supported source site.
type Platform string

const (
	YouTube   Platform = "youtube"
	TikTok    Platform = "tiktok"
	Instagram Platform = "instagram"
	Facebook  Platform = "facebook"
	Twitter   Platform = "twitter"
)

var (
	ErrUnknownSource  = errors.New("URL does not match any supported source")
	ErrNotSingleVideo = errors.New("URL points to a playlist or collection, not a single video")
)

// hostTable maps lowercase hostnames (with any "www." prefix stripped) to a
// platform. Order does not matter since hosts are disjoint.
var hostTable = map[string]Platform{
	"youtube.com":        YouTube,
	"m.youtube.com":      YouTube,
	"youtu.be":           YouTube,
	"tiktok.com":         TikTok,
	"vm.tiktok.com":      TikTok,
	"vt.tiktok.com":      TikTok,
	"instagram.com":      Instagram,
	"facebook.com":       Facebook,
	"m.facebook.com":     Facebook,
	"fb.watch":           Facebook,
	"twitter.com":        Twitter,
	"mobile.twitter.com": Twitter,
	"x.com":              Twitter,
}

// collection markers that distinguish a playlist reference from a single
// video on YouTube URLs
var youtubeCollectionMarkers = []string{"list=", "/playlist"}

// All returns every known platform identifier.
func All() []Platform {
	return []Platform{YouTube, TikTok, Instagram, Facebook, Twitter}
}

// Parse converts a user-supplied platform name into a Platform.
func Parse(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range All() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", name)
}

// Classify validates a submitted URL and maps it to a platform identifier.
// It rejects URLs that match no known source and YouTube URLs that
// reference a collection rather than a single video.
func Classify(rawURL string) (Platform, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ErrUnknownSource
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnknownSource
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	p, ok := hostTable[host]
	if !ok {
		return "", ErrUnknownSource
	}
	if p == YouTube {
		lower := strings.ToLower(rawURL)
		for _, marker := range youtubeCollectionMarkers {
			if strings.Contains(lower, marker) {
				return "", ErrNotSingleVideo
			}
		}
	}
	return p, nil
}

// IsShortLink reports whether the URL uses one of the short-link hosts that
// need redirect resolution before probing.
func IsShortLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "vm.tiktok.com" || host == "vt.tiktok.com"
}

// ExpandShortLink resolves a short link by following redirects with a
// bounded timeout. Resolution is best-effort: on any failure the original
// URL is returned unchanged.
func ExpandShortLink(ctx context.Context, client *http.Client, rawURL string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}
	resp, err := client.Do(req)
	if err != nil {
		return rawURL
	}
	defer resp.Body.Close()
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return rawURL
}
