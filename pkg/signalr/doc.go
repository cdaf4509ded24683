// Package signalr implements the parts of the classic SignalR 1.5 protocol
// used by the live-timing hub.
//
// # Connection Sequence
//
//	GET  {base}/negotiate   -> connection token, keep-alive timeout
//	WS   {base}/connect     -> persistent websocket (wss)
//	SEND {"H":"Streaming","M":"Subscribe","A":[[topics...]],"I":0}
//	RECV {"R":{topic: snapshot...},"I":"0"}
//	GET  {base}/start       -> {"Response":"started"}
//
// While streaming the hub sends feed frames
//
//	{"C":"<message id>","M":[{"H":"Streaming","M":"feed","A":[topic, payload, utc]}]}
//
// and "{}" keep-alives. The client pings {base}/ping periodically and posts
// {base}/abort when it leaves.
package signalr
