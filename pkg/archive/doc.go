// Package archive reads the hub's static archive of past sessions.
//
// Every session published on the live hub is later available as a set of
// static files: a yearly Index.json listing meetings and sessions, a
// per-session Index.json listing the recorded topics, and one
// "<topic>.jsonStream" file per topic. A stream file holds one line per
// hub message:
//
//	00:01:02.345{"CurrentLap":12}
//
// The prefix is the offset from the start of the recording, the rest is
// the payload exactly as the live feed carried it. Binary topics carry a
// quoted base64 string.
//
// A Replayer feeds those lines through a state.Merger and a
// dispatch.Dispatcher, so archived sessions reach consumers in the same
// shape as live ones: the first line of each topic is applied as a
// snapshot, the rest as updates.
//
// StreamingStatus reports whether the hub is currently broadcasting.
package archive
