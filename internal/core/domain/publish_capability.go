package domain

import "strings"

// PublishCapability represents the publish shapes a platform supports.
// This is a bitfield allowing platforms to support several shapes.
type PublishCapability uint8

const (
	// PublishCapNone indicates the platform cannot publish.
	PublishCapNone PublishCapability = 0
	// PublishCapText indicates text-only posts are supported.
	PublishCapText PublishCapability = 1 << 0
	// PublishCapImage indicates single image posts are supported.
	PublishCapImage PublishCapability = 1 << 1
	// PublishCapVideo indicates single video posts are supported.
	PublishCapVideo PublishCapability = 1 << 2
	// PublishCapCarousel indicates multi-item posts are supported.
	PublishCapCarousel PublishCapability = 1 << 3
)

// SupportsText returns true if text-only posts are supported.
func (c PublishCapability) SupportsText() bool {
	return c&PublishCapText != 0
}

// SupportsKind returns true if single posts of the given media kind are supported.
func (c PublishCapability) SupportsKind(kind MediaKind) bool {
	switch kind {
	case MediaImage:
		return c&PublishCapImage != 0
	case MediaVideo:
		return c&PublishCapVideo != 0
	default:
		return false
	}
}

// SupportsCarousel returns true if multi-item posts are supported.
func (c PublishCapability) SupportsCarousel() bool {
	return c&PublishCapCarousel != 0
}

// String returns a human-readable representation.
func (c PublishCapability) String() string {
	if c == PublishCapNone {
		return "none"
	}
	var parts []string
	if c.SupportsText() {
		parts = append(parts, "text")
	}
	if c&PublishCapImage != 0 {
		parts = append(parts, "image")
	}
	if c&PublishCapVideo != 0 {
		parts = append(parts, "video")
	}
	if c.SupportsCarousel() {
		parts = append(parts, "carousel")
	}
	return strings.Join(parts, "|")
}
