package fetch

import (
	"net/url"
	"strings"
)

// Platform is a known job board.
type Platform string

const (
	PlatformJobindex Platform = "jobindex"
	PlatformJobnet   Platform = "jobnet"
	PlatformTheHub   Platform = "thehub"
	PlatformLinkedIn Platform = "linkedin"
	PlatformUnknown  Platform = "unknown"
)

var platformHosts = []struct {
	suffix   string
	platform Platform
}{
	{"jobindex.dk", PlatformJobindex},
	{"jobnet.dk", PlatformJobnet},
	{"thehub.io", PlatformTheHub},
	{"linkedin.com", PlatformLinkedIn},
}

// DetectPlatform identifies the job board from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	for _, h := range platformHosts {
		if host == h.suffix || strings.HasSuffix(host, "."+h.suffix) {
			return h.platform
		}
	}
	return PlatformUnknown
}

// RendersClientSide reports whether the platform needs a browser to show
// the posting text.
func (p Platform) RendersClientSide() bool {
	return p == PlatformJobnet || p == PlatformTheHub
}

// PlatformContentSelectors returns content selectors for a platform, with
// the generic job posting selectors as fallback.
func PlatformContentSelectors(platform Platform) []string {
	var specific []string
	switch platform {
	case PlatformJobindex:
		specific = []string{".jobtext-jobad", ".jix_robotjob-inner", ".PaidJob-inner"}
	case PlatformJobnet:
		specific = []string{".job-ad-content", "[data-testid='job-ad-description']"}
	case PlatformTheHub:
		specific = []string{".view-job-details__body", ".text-block"}
	case PlatformLinkedIn:
		specific = []string{".show-more-less-html__markup", ".description__text"}
	}
	return append(specific, JobPostingSelectors()...)
}

// PlatformNoiseSelectors returns elements to drop before extracting text.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		"form",
		".application-form",
		".apply-button-container",
		".social-share",
		".share-buttons",
		".cookie-consent",
		"#CybotCookiebotDialog",
		".gdpr-notice",
	}
	switch platform {
	case PlatformJobindex:
		return append(common, ".jix-toolbar", ".jobad-similar", ".jix_robotjob--related")
	case PlatformLinkedIn:
		return append(common, ".top-card-layout__cta-container", ".similar-jobs")
	default:
		return common
	}
}
