// Package types provides shared data structures for the gateway.
//
// This package defines the core types used across components, so the
// store layout, the gate, and the API surfaces agree on shapes.
//
// Core Types:
//   - Session: the active work session record
//   - ClassificationEntry: one cached URL verdict
//   - NavigationEvent: a navigation signal from the extension
//   - Decision: the gate's answer to a navigation event
//
// Persisted records carry a SchemaVersion and a Migrate method; records
// from older gateway versions are upgraded on read, unknown future
// versions are discarded rather than misread.
package types
