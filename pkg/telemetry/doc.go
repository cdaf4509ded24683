// Package telemetry decodes the hub's binary topics, CarData.z and
// Position.z.
//
// A binary payload is a base64 string of raw deflate data holding a JSON
// document. The hub does not publish the document shapes; both were
// recovered from captured sessions and are pinned by the fixtures in
// testdata/. Any other shape is reported as a SchemaError.
//
//	CarData.z:  {"Entries":[{"Utc":T,"Cars":{"44":{"Channels":{"0":n,...}}}}]}
//	Position.z: {"Position":[{"Timestamp":T,"Entries":{"44":{"Status":s,"X":n,"Y":n,"Z":n}}}]}
package telemetry
