// Package ir provides the canonical data model for bpkit.
//
// This package contains type definitions and the serialization primitives
// they depend on. All other internal packages import ir; ir imports nothing
// internal, so the model stays the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - NO float types in hashed content - confidence is fixed-point thousandths
//   - Closed string enums for every kind/status/type field
//   - All JSON tags use snake_case
//   - Content hashes use canonical JSON (RFC 8785) with domain separation
package ir
