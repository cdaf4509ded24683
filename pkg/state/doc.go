// Package state maintains the session state of a live-timing feed.
//
// The hub publishes each topic as one Snapshot followed by Update envelopes.
// A Merger applies them in arrival order:
//
//   - Snapshot replaces the topic's value.
//   - Update is deep-merged into it with DeepMerge.
//
// Binary topics (CarData.z, Position.z) store the raw encoded string and
// decode it into samples after every envelope. A decode failure drops that
// envelope's samples but never corrupts the stored value.
//
// Values are never mutated once built; readers get deep copies through
// Snapshot and Value.
package state
