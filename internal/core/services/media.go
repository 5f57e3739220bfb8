package services

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/netip"
	"net/url"
	"path"
	"strings"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

var (
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".heic": true, ".bmp": true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".mov": true, ".m4v": true, ".webm": true,
		".avi": true, ".mkv": true, ".mpeg": true, ".mpg": true,
	}
)

// DetectMediaKind resolves the kind of one media item: the explicit kind
// first, then the declared content type, then the URL file extension.
// It returns MediaUnknown rather than guessing.
func DetectMediaKind(explicit domain.MediaKind, contentType, rawURL string) domain.MediaKind {
	if explicit == domain.MediaImage || explicit == domain.MediaVideo {
		return explicit
	}
	if kind := kindFromContentType(contentType); kind != domain.MediaUnknown {
		return kind
	}
	return kindFromURL(rawURL)
}

func kindFromContentType(contentType string) domain.MediaKind {
	if contentType == "" {
		return domain.MediaUnknown
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return domain.MediaImage
	case strings.HasPrefix(mediaType, "video/"):
		return domain.MediaVideo
	default:
		return domain.MediaUnknown
	}
}

func kindFromURL(rawURL string) domain.MediaKind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.MediaUnknown
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch {
	case imageExtensions[ext]:
		return domain.MediaImage
	case videoExtensions[ext]:
		return domain.MediaVideo
	default:
		return domain.MediaUnknown
	}
}

// ResolveMedia resolves the kind of every media URL in the request. The
// request-level explicit kind and content type apply to every item.
func ResolveMedia(req domain.PublishRequest) ([]domain.Media, error) {
	items := make([]domain.Media, 0, len(req.MediaURLs))
	for i, u := range req.MediaURLs {
		kind := DetectMediaKind(req.MediaKind, req.ContentType, u)
		if kind == domain.MediaUnknown {
			return nil, &domain.PlatformError{
				Kind:     domain.KindMediaKindMismatch,
				Platform: req.Platform,
				Step:     "detect media kind",
				Message:  fmt.Sprintf("cannot determine whether %s is an image or a video", u),
				Index:    i,
			}
		}
		items = append(items, domain.Media{URL: u, Kind: kind})
	}
	return items, nil
}

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// MediaGuard rejects media URLs that a platform could not fetch server-side.
type MediaGuard struct {
	allowPrivate bool
	resolver     Resolver
}

// NewMediaGuard creates a guard. A nil resolver skips DNS checks so only
// literal addresses and known hostnames are rejected.
func NewMediaGuard(allowPrivate bool, resolver Resolver) *MediaGuard {
	return &MediaGuard{allowPrivate: allowPrivate, resolver: resolver}
}

// DefaultResolver returns the system resolver.
func DefaultResolver() Resolver {
	return net.DefaultResolver
}

var blockedHosts = map[string]bool{
	"localhost":                true,
	"localhost.localdomain":    true,
	"metadata.google.internal": true,
	"metadata":                 true,
}

// Validate checks that rawURL is a plausible public HTTP(S) URL.
func (g *MediaGuard) Validate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: invalid URL %q", domain.ErrMediaUnreachable, rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q must use http or https", domain.ErrMediaUnreachable, rawURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: %q has no host", domain.ErrMediaUnreachable, rawURL)
	}
	if g.allowPrivate {
		return nil
	}
	if blockedHosts[host] || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("%w: host %s is not publicly reachable", domain.ErrMediaUnreachable, host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !isPublicAddr(addr) {
			return fmt.Errorf("%w: address %s is not publicly reachable", domain.ErrMediaUnreachable, addr)
		}
		return nil
	}

	if g.resolver == nil {
		return nil
	}
	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("%w: host %s does not resolve", domain.ErrMediaUnreachable, host)
	}
	for _, addr := range addrs {
		if !isPublicAddr(addr) {
			return fmt.Errorf("%w: host %s resolves to non-public address %s",
				domain.ErrMediaUnreachable, host, addr)
		}
	}
	return nil
}

func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified()
}
