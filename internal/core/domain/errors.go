package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a platform or publish shape is not supported.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNotConfigured indicates a platform has no client credentials configured.
	ErrNotConfigured = errors.New("platform not configured")

	// OAuth correlation errors. The user must restart the connect flow.

	// ErrStateInvalid indicates an unknown, reused or mismatched OAuth state.
	ErrStateInvalid = errors.New("invalid or expired state: state not recognised")

	// ErrStateExpired indicates an OAuth state past its TTL.
	ErrStateExpired = errors.New("invalid or expired state: state expired")

	// Provider errors.

	// ErrAuthDenied indicates the provider rejected credentials or scopes.
	ErrAuthDenied = errors.New("authorization denied")

	// ErrProviderUnavailable indicates a network failure or provider 5xx. Safe to retry.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected indicates the provider refused a request for a
	// non-auth reason.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrNoPostableAsset indicates the account has no page, channel or
	// business asset to publish from.
	ErrNoPostableAsset = errors.New("no postable asset")

	// Credential and publish errors.

	// ErrCredential indicates a stored token is unreadable. The connection is
	// broken and the user must reconnect.
	ErrCredential = errors.New("stored credential unreadable")

	// ErrNoConnection indicates the user has no active connection for the platform.
	ErrNoConnection = errors.New("no active connection")

	// ErrMediaUnreachable indicates a media URL cannot be fetched by the platform.
	ErrMediaUnreachable = errors.New("media unreachable")

	// ErrMediaKindMismatch indicates the media kind is undeterminable or not
	// accepted where it was used.
	ErrMediaKindMismatch = errors.New("media kind mismatch")

	// ErrPartialCarousel indicates one item of a carousel failed and the
	// whole publish was aborted.
	ErrPartialCarousel = errors.New("partial carousel failure")
)

// ErrorKind is the user-facing classification of a failure.
type ErrorKind string

const (
	KindStateInvalid           ErrorKind = "StateInvalid"
	KindStateExpired           ErrorKind = "StateExpired"
	KindAuthDenied             ErrorKind = "AuthDenied"
	KindProviderUnavailable    ErrorKind = "ProviderUnavailable"
	KindProviderRejected       ErrorKind = "ProviderRejected"
	KindNoPostableAsset        ErrorKind = "NoPostableAsset"
	KindCredentialError        ErrorKind = "CredentialError"
	KindNoConnection           ErrorKind = "NoConnection"
	KindMediaUnreachable       ErrorKind = "MediaUnreachable"
	KindMediaKindMismatch      ErrorKind = "MediaKindMismatch"
	KindPartialCarouselFailure ErrorKind = "PartialCarouselFailure"
	KindNotConfigured          ErrorKind = "NotConfigured"
	KindUnsupported            ErrorKind = "Unsupported"
	KindInvalidInput           ErrorKind = "InvalidInput"
	KindNotFound               ErrorKind = "NotFound"
	KindInternal               ErrorKind = "Internal"
)

// kindSentinels is ordered most specific first.
var kindSentinels = []struct {
	kind ErrorKind
	err  error
}{
	{KindStateInvalid, ErrStateInvalid},
	{KindStateExpired, ErrStateExpired},
	{KindAuthDenied, ErrAuthDenied},
	{KindProviderUnavailable, ErrProviderUnavailable},
	{KindProviderRejected, ErrProviderRejected},
	{KindNoPostableAsset, ErrNoPostableAsset},
	{KindCredentialError, ErrCredential},
	{KindNoConnection, ErrNoConnection},
	{KindMediaUnreachable, ErrMediaUnreachable},
	{KindMediaKindMismatch, ErrMediaKindMismatch},
	{KindPartialCarouselFailure, ErrPartialCarousel},
	{KindNotConfigured, ErrNotConfigured},
	{KindUnsupported, ErrUnsupportedType},
	{KindInvalidInput, ErrInvalidInput},
	{KindNotFound, ErrNotFound},
}

// Sentinel returns the sentinel error for a kind, or nil for KindInternal.
func (k ErrorKind) Sentinel() error {
	for _, ks := range kindSentinels {
		if ks.kind == k {
			return ks.err
		}
	}
	return nil
}

// KindOf classifies err. Unclassified errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *PlatformError
	if errors.As(err, &pe) && pe.Kind != "" {
		return pe.Kind
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindInternal
}

// PlatformError is a failure raised while talking to a platform, tagged with
// the platform and the step that failed.
type PlatformError struct {
	Kind     ErrorKind
	Platform Platform
	Step     string
	// Message is the provider's own message, kept verbatim for display.
	Message string
	// Index is the failing carousel item index, or -1.
	Index int
	Err   error
}

// NewPlatformError creates a PlatformError with no carousel index.
func NewPlatformError(kind ErrorKind, platform Platform, step, message string, err error) *PlatformError {
	return &PlatformError{
		Kind:     kind,
		Platform: platform,
		Step:     step,
		Message:  message,
		Index:    -1,
		Err:      err,
	}
}

func (e *PlatformError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Platform))
	if e.Step != "" {
		b.WriteString(" ")
		b.WriteString(e.Step)
	}
	if e.Index >= 0 {
		fmt.Fprintf(&b, " (item %d)", e.Index)
	}
	b.WriteString(": ")
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *PlatformError) Unwrap() []error {
	var errs []error
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ProviderMessage returns the provider message carried by err, if any.
func ProviderMessage(err error) string {
	var pe *PlatformError
	if errors.As(err, &pe) {
		if pe.Message != "" {
			return pe.Message
		}
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// CredentialError reports a stored token that cannot be decrypted.
type CredentialError struct {
	ConnectionID string
	Op           string
	Err          error
}

func (e *CredentialError) Error() string {
	msg := "stored credential unreadable"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ConnectionID != "" {
		msg += " (connection " + e.ConnectionID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrCredential.
func (e *CredentialError) Is(target error) bool {
	return target == ErrCredential
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}
