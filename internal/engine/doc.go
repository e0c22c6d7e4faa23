// Package engine replays a channel's action log into a Request.
//
// The engine is the only place that sees the whole log. It decodes each raw
// entry, orders the set, and folds it through the request reducer.
//
// ARCHITECTURE:
//
// Replay Flow:
//  1. Decode every entry. Entries that fail to decode become malformed
//     events keyed by the hash of their raw bytes.
//  2. Drop repeated entries (same content hash) and sort the rest by
//     (timestamp, content hash) ascending.
//  3. Fold through logic.Apply. Rejected actions are recorded as rejected
//     events and the fold continues from the previous snapshot.
//  4. Events considered before the create are buffered and prepended once
//     the request exists.
//
// CRITICAL PATTERNS:
//
// Deterministic Ordering:
// The result depends only on the set of entries, never on the order they
// were read. Ties on timestamp are broken by content hash.
//
// Pure Fold:
// Replay has no side effects and never mutates its input. The only error
// that escapes is an invariant violation (a reducer bug); every malformed
// or refused action is data on the event log.
package engine
