package domain

import (
	"strings"
	"time"
)

// MediaKind is the kind of a media item.
type MediaKind string

const (
	// MediaUnknown means the kind has not been determined.
	MediaUnknown MediaKind = ""
	MediaImage   MediaKind = "image"
	MediaVideo   MediaKind = "video"
)

// ParseMediaKind maps a declared kind to a MediaKind. Unrecognised values
// map to MediaUnknown.
func ParseMediaKind(s string) MediaKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "photo", "picture":
		return MediaImage
	case "video", "reel", "reels":
		return MediaVideo
	default:
		return MediaUnknown
	}
}

// Media is one resolved media item of a publish.
type Media struct {
	URL  string
	Kind MediaKind
}

// PublishRequest is a normalized instruction for one publish attempt.
type PublishRequest struct {
	Platform     Platform
	ConnectionID string
	// ContentID links the result back to the originating content record.
	ContentID string
	Title     string
	Text      string
	Hashtags  []string
	// MediaURLs is ordered and empty for text-only posts.
	MediaURLs []string
	// MediaKind is the explicit kind, if the caller supplied one.
	MediaKind MediaKind
	// ContentType is the declared MIME type, if the caller supplied one.
	ContentType string
	IsCarousel  bool
}

// Caption returns the text followed by the hashtags, each prefixed with '#'.
func (r PublishRequest) Caption() string {
	text := strings.TrimSpace(r.Text)
	tags := make([]string, 0, len(r.Hashtags))
	for _, h := range r.Hashtags {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if !strings.HasPrefix(h, "#") {
			h = "#" + h
		}
		tags = append(tags, h)
	}
	if len(tags) == 0 {
		return text
	}
	if text == "" {
		return strings.Join(tags, " ")
	}
	return text + "\n\n" + strings.Join(tags, " ")
}

// HasMedia reports whether the request carries any media.
func (r PublishRequest) HasMedia() bool {
	return len(r.MediaURLs) > 0
}

// PublishResult is the outcome of a publish attempt.
type PublishResult struct {
	RemotePostID string    `json:"post_id,omitempty"`
	PermalinkURL string    `json:"url,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitempty"`
	// ErrorKind and Message are set on failure.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"error,omitempty"`
}

// Succeeded reports whether the result represents a completed publish.
func (r *PublishResult) Succeeded() bool {
	return r != nil && r.ErrorKind == "" && r.RemotePostID != ""
}

// ContentStatus is the publish status of a content record.
type ContentStatus string

const (
	ContentDraft     ContentStatus = "draft"
	ContentScheduled ContentStatus = "scheduled"
	ContentPublished ContentStatus = "published"
)

// ContentRecord is the persisted piece of generated content a publish
// originates from. Only the fields the publish workflow touches are modelled.
type ContentRecord struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Platform     Platform      `json:"platform"`
	Status       ContentStatus `json:"status"`
	RemotePostID string        `json:"remote_post_id,omitempty"`
	PermalinkURL string        `json:"permalink_url,omitempty"`
	PublishedAt  *time.Time    `json:"published_at,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
