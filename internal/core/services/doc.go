// Package services implements the driving port interfaces: OAuth state
// handling, the connection lifecycle, publish orchestration and the
// maintenance scheduler.
//
// Services depend only on driven ports; platform adapters, stores and the
// token cipher are injected.
package services
