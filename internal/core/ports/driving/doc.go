// Package driving defines the interfaces that the outside world calls INTO core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The HTTP handlers and CLI commands depend on these interfaces; services
// implement them.
package driving
