// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ConnectionStore: Connection persistence
//   - OAuthStateStore: Pending authorization state persistence
//   - TokenCipher: Credential encryption
//   - AdapterRegistry: Per-platform auth and publish adapters
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ContentStore: Content records. Without it publish results are not linked back.
//   - EventPublisher: Domain events. Without it events are dropped.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or platform package
package driven
