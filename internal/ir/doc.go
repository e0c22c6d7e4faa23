// Package ir holds the canonical value and record types for reqlog.
//
// This package contains type definitions, the canonical JSON encoder and the
// content hashes. All other internal packages import ir; ir imports nothing
// internal.
//
// Key design constraints:
//   - NO float types anywhere: amounts are decimal strings, other numbers int64
//   - Canonical encoding is RFC 8785 JSON; it is the only input to hashes
//     and signatures
//   - Records are values: every Clone is deep, reducers return new records
//   - Ordering uses logical timestamps from the action log, never wall clocks
package ir
