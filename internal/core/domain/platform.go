package domain

import (
	"fmt"
	"strings"
)

// Platform identifies an external social or publishing platform.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformWordPress Platform = "wordpress"
	PlatformGoogle    Platform = "google"
)

// AllPlatforms returns every supported platform in a stable order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformFacebook,
		PlatformInstagram,
		PlatformLinkedIn,
		PlatformTwitter,
		PlatformYouTube,
		PlatformWordPress,
		PlatformGoogle,
	}
}

// ParsePlatform normalizes a platform name. "x" is accepted as an alias for twitter.
func ParsePlatform(s string) (Platform, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "x" {
		name = string(PlatformTwitter)
	}
	p := Platform(name)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, s)
	}
	return p, nil
}

// IsValid reports whether p is a supported platform.
func (p Platform) IsValid() bool {
	for _, known := range AllPlatforms() {
		if p == known {
			return true
		}
	}
	return false
}

// String returns the platform name.
func (p Platform) String() string {
	return string(p)
}

// DisplayName returns a human-readable platform name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformLinkedIn:
		return "LinkedIn"
	case PlatformYouTube:
		return "YouTube"
	case PlatformWordPress:
		return "WordPress"
	case PlatformTwitter:
		return "X (Twitter)"
	case "":
		return ""
	default:
		return strings.ToUpper(string(p[:1])) + string(p[1:])
	}
}
