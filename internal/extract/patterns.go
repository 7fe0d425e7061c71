package extract

import "regexp"

// playerDomainAllowlist recognizes script URLs belonging to known HLS/DASH
// player bundles, exempting them from the generic block-pattern check
// (spec §4.2 step 4, script branch).
var playerDomainAllowlist = regexp.MustCompile(`(?i)(player|jwplayer|plyr|video|embed|hls|dash|stream)`)

// telemetryPattern matches xhr/fetch requests that are pure analytics noise.
var telemetryPattern = regexp.MustCompile(`(?i)(analytics|tracking|beacon|metrics|telemetry|collect|log|event)`)

// blockPatterns is the verbatim block list from spec §6: analytics/ads CDNs
// plus bare video-preview file extensions.
var blockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)google-analytics\.com`),
	regexp.MustCompile(`(?i)googletagmanager\.com`),
	regexp.MustCompile(`(?i)facebook\.(com|net)`),
	regexp.MustCompile(`(?i)doubleclick\.net`),
	regexp.MustCompile(`(?i)analytics\.`),
	regexp.MustCompile(`(?i)hotjar\.com`),
	regexp.MustCompile(`(?i)clarity\.ms`),
	regexp.MustCompile(`(?i)sentry\.io`),
	regexp.MustCompile(`(?i)segment\.(com|io)`),
	regexp.MustCompile(`(?i)mixpanel\.com`),
	regexp.MustCompile(`(?i)amplitude\.com`),
	regexp.MustCompile(`(?i)newrelic\.com`),
	regexp.MustCompile(`(?i)bugsnag\.com`),
	regexp.MustCompile(`(?i)datadog`),
	regexp.MustCompile(`(?i)ads\.`),
	regexp.MustCompile(`(?i)adserver\.`),
	regexp.MustCompile(`(?i)pagead`),
	regexp.MustCompile(`(?i)prebid`),
	regexp.MustCompile(`(?i)adsystem`),
	regexp.MustCompile(`(?i)adservice`),
	regexp.MustCompile(`(?i)\.(mp4|webm)(\?|$)`),
}

func matchesBlockPattern(rawURL string) bool {
	for _, p := range blockPatterns {
		if p.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// playButtonSelectors is the ordered candidate list for play-button
// coaxing (spec §4.2 step 7): the first visible match wins.
var playButtonSelectors = []string{
	".jw-icon-playback",
	".jw-display-icon-container",
	".vjs-big-play-button",
	`[aria-label="Play"]`,
	".play-button",
	".plyr__control--overlaid",
	"video",
	`[class*="play"]`,
}
