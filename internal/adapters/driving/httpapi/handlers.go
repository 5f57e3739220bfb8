package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driving"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

// maxPublishBody bounds the publish request body.
const maxPublishBody = 1 << 20

// PlatformLister reports which platforms have credentials configured.
type PlatformLister interface {
	Configured() []domain.Platform
}

// Handlers serves the HTTP API over the driving ports.
type Handlers struct {
	connections driving.ConnectionService
	publisher   driving.PublishService
	platforms   PlatformLister
	// callbackRedirect, when set, replaces the HTML callback page with a
	// redirect to the host application.
	callbackRedirect string
}

// NewHandlers creates the handler set.
func NewHandlers(
	connections driving.ConnectionService,
	publisher driving.PublishService,
	platforms PlatformLister,
	callbackRedirect string,
) *Handlers {
	return &Handlers{
		connections:      connections,
		publisher:        publisher,
		platforms:        platforms,
		callbackRedirect: callbackRedirect,
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type platformInfo struct {
	Platform    domain.Platform `json:"platform"`
	DisplayName string          `json:"display_name"`
}

// Platforms lists the platforms that can be connected.
func (h *Handlers) Platforms(w http.ResponseWriter, _ *http.Request) {
	out := make([]platformInfo, 0)
	if h.platforms != nil {
		for _, p := range h.platforms.Configured() {
			out = append(out, platformInfo{Platform: p, DisplayName: p.DisplayName()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"platforms": out})
}

type connectResponse struct {
	AuthorizationURL string          `json:"authorization_url"`
	Platform         domain.Platform `json:"platform"`
}

// Connect starts the OAuth flow. With ?redirect=true the client is sent
// straight to the provider.
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	platform, err := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	authURL, err := h.connections.BeginConnect(r.Context(), UserID(r.Context()), platform)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, authURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{AuthorizationURL: authURL, Platform: platform})
}

// Callback completes the OAuth flow. It is unauthenticated; the user is
// identified by the state parameter.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	platform, err := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		h.callbackFailure(w, r, "", err)
		return
	}

	q := r.URL.Query()
	result, err := h.connections.CompleteConnect(r.Context(), platform, driving.CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		logger.Slog().WarnContext(r.Context(), "oauth callback failed",
			"platform", string(platform), "error_kind", string(domain.KindOf(err)), "error", err)
		h.callbackFailure(w, r, platform, err)
		return
	}

	accounts := []string{describeConnection(result.Primary)}
	if result.Secondary != nil {
		accounts = append(accounts, describeConnection(result.Secondary))
	}

	if h.callbackRedirect != "" {
		http.Redirect(w, r, h.redirectURL(platform, "connected", "", result.Primary.ID), http.StatusFound)
		return
	}
	renderCallback(w, http.StatusOK, callbackView{
		Success:  true,
		Title:    platform.DisplayName() + " connected",
		Message:  "These accounts are ready to publish to:",
		Accounts: accounts,
	})
}

func (h *Handlers) callbackFailure(w http.ResponseWriter, r *http.Request, platform domain.Platform, err error) {
	kind := domain.KindOf(err)
	if h.callbackRedirect != "" {
		http.Redirect(w, r, h.redirectURL(platform, "error", kind, ""), http.StatusFound)
		return
	}

	view := callbackView{Title: "Connection failed"}
	switch kind {
	case domain.KindNoPostableAsset:
		view.Message = "The account was authorized but has nothing we can publish to."
		view.Remediation = domain.ProviderMessage(err)
	case domain.KindStateInvalid, domain.KindStateExpired:
		view.Message = "This authorization link is invalid or has expired. Start the connection again."
	case domain.KindAuthDenied:
		view.Message = "Authorization was denied: " + domain.ProviderMessage(err)
	case domain.KindInternal:
		view.Message = "Something went wrong while completing the connection."
	default:
		view.Message = domain.ProviderMessage(err)
	}
	renderCallback(w, StatusFor(kind), view)
}

func (h *Handlers) redirectURL(platform domain.Platform, status string, kind domain.ErrorKind, connectionID string) string {
	q := url.Values{}
	if platform != "" {
		q.Set("platform", string(platform))
	}
	q.Set("status", status)
	if kind != "" {
		q.Set("error_kind", string(kind))
	}
	if connectionID != "" {
		q.Set("connection_id", connectionID)
	}
	sep := "?"
	if strings.Contains(h.callbackRedirect, "?") {
		sep = "&"
	}
	return h.callbackRedirect + sep + q.Encode()
}

func describeConnection(c *domain.Connection) string {
	if c == nil {
		return ""
	}
	name := c.DisplayName
	if name == "" {
		name = c.ExternalAccountID
	}
	if c.DisplayHandle != "" {
		name = fmt.Sprintf("%s (%s)", name, c.DisplayHandle)
	}
	return fmt.Sprintf("%s: %s", c.Platform.DisplayName(), name)
}

// ListConnections returns the caller's connections without token material.
func (h *Handlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.connections.List(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": conns})
}

// DeleteConnection disconnects one connection by id.
func (h *Handlers) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.connections.Disconnect(r.Context(), UserID(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "connection_id": id})
}

// DisconnectPlatform disconnects every active connection for a platform.
func (h *Handlers) DisconnectPlatform(w http.ResponseWriter, r *http.Request) {
	platform, err := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.connections.DisconnectPlatform(r.Context(), UserID(r.Context()), platform)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "platform": platform, "disconnected": n})
}

// PublishBody is the JSON body of a publish request.
type PublishBody struct {
	Message        string   `json:"message"`
	Title          string   `json:"title"`
	Hashtags       []string `json:"hashtags"`
	ImageURL       string   `json:"image_url"`
	VideoURL       string   `json:"video_url"`
	CarouselImages []string `json:"carousel_images"`
	MediaKind      string   `json:"media_kind"`
	ContentType    string   `json:"content_type"`
	ContentID      string   `json:"content_id"`
	ConnectionID   string   `json:"connection_id"`
}

// Request converts the body into a publish request for platform. Carousel
// images take precedence over a single video, which takes precedence over a
// single image. Only media_kind sets an explicit kind; otherwise the kind is
// detected later from content_type and the URL's extension.
func (b PublishBody) Request(platform domain.Platform) domain.PublishRequest {
	req := domain.PublishRequest{
		Platform:     platform,
		ConnectionID: b.ConnectionID,
		ContentID:    b.ContentID,
		Title:        b.Title,
		Text:         b.Message,
		Hashtags:     b.Hashtags,
		MediaKind:    domain.ParseMediaKind(b.MediaKind),
		ContentType:  b.ContentType,
	}

	var carousel []string
	for _, u := range b.CarouselImages {
		if u = strings.TrimSpace(u); u != "" {
			carousel = append(carousel, u)
		}
	}

	switch {
	case len(carousel) > 0:
		req.MediaURLs = carousel
		req.IsCarousel = true
	case strings.TrimSpace(b.VideoURL) != "":
		req.MediaURLs = []string{strings.TrimSpace(b.VideoURL)}
	case strings.TrimSpace(b.ImageURL) != "":
		req.MediaURLs = []string{strings.TrimSpace(b.ImageURL)}
	}
	return req
}

type publishResponse struct {
	Success     bool             `json:"success"`
	PostID      string           `json:"post_id,omitempty"`
	URL         string           `json:"url,omitempty"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`
	ErrorKind   domain.ErrorKind `json:"error_kind,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Publish runs one publish attempt for the caller.
func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	platform, err := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body PublishBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPublishBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidInput, err))
		return
	}

	result, err := h.publisher.Publish(r.Context(), UserID(r.Context()), body.Request(platform))
	if err != nil {
		kind := domain.KindOf(err)
		message := domain.ProviderMessage(err)
		if result != nil && result.ErrorKind != "" {
			kind, message = result.ErrorKind, result.Message
		}
		if kind == domain.KindInternal {
			logger.Slog().ErrorContext(r.Context(), "publish failed",
				"platform", string(platform), "error", err)
			message = "internal error"
		}
		writeJSON(w, StatusFor(kind), publishResponse{ErrorKind: kind, Error: message})
		return
	}
	if result == nil {
		writeError(w, r, errors.New("publish returned no result"))
		return
	}

	resp := publishResponse{
		Success: true,
		PostID:  result.RemotePostID,
		URL:     result.PermalinkURL,
	}
	if !result.PublishedAt.IsZero() {
		at := result.PublishedAt.UTC()
		resp.PublishedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}
