package policy

import "github.com/fetchkit/fetchd/internal/platform"

// Policy is the per-platform network and retry tuning applied to one
// engine invocation. Zero values mean "engine default".
type Policy struct {
	ChunkSizeBytes      int64
	ConcurrentFragments int
	Retries             int
	FragmentRetries     int
	SocketTimeoutSec    int
	UseCookies          bool
}

// cookiePlatforms lists sources where cookie attachment is supported.
var cookiePlatforms = map[platform.Platform]bool{
	platform.Facebook:  true,
	platform.Instagram: true,
}

// Build returns the resilience policy for a platform. Facebook's long-form
// delivery drops connections mid-stream, so it gets small chunks, a single
// fragment at a time and generous retry budgets. Cookies are attached only
// where supported and administratively enabled.
func Build(p platform.Platform, cookiesEnabled bool) Policy {
	var pol Policy
	if p == platform.Facebook {
		pol = Policy{
			ChunkSizeBytes:      10 << 20, // 10 MiB
			ConcurrentFragments: 1,
			Retries:             10,
			FragmentRetries:     10,
			SocketTimeoutSec:    30,
		}
	}
	if cookiesEnabled && cookiePlatforms[p] {
		pol.UseCookies = true
	}
	return pol
}
