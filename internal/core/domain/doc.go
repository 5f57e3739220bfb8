// Package domain defines the core business entities for socialrelay.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Connection: A linked external platform account with encrypted tokens
//   - OAuthState: A single-use correlation token for a pending authorization
//   - PublishRequest: A normalized instruction for one publish attempt
//   - PublishResult: The outcome of a publish attempt
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
