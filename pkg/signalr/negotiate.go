package signalr

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Negotiation errors.
var (
	ErrNoToken                = errors.New("negotiation returned no connection token")
	ErrWebSocketsUnsupported  = errors.New("hub does not offer websockets")
	ErrProtocolVersion        = errors.New("unsupported protocol version")
	ErrUnauthorized           = errors.New("hub rejected credentials")
	ErrUnexpectedResponseBody = errors.New("unexpected response body")
)

// NegotiateResponse is the hub's answer to a negotiation request.
// Durations are in seconds on the wire.
type NegotiateResponse struct {
	URL                     string  `json:"Url"`
	ConnectionToken         string  `json:"ConnectionToken"`
	ConnectionID            string  `json:"ConnectionId"`
	KeepAliveTimeout        float64 `json:"KeepAliveTimeout"`
	DisconnectTimeout       float64 `json:"DisconnectTimeout"`
	ConnectionTimeout       float64 `json:"ConnectionTimeout"`
	TryWebSockets           bool    `json:"TryWebSockets"`
	ProtocolVersion         string  `json:"ProtocolVersion"`
	TransportConnectTimeout float64 `json:"TransportConnectTimeout"`
	LongPollDelay           float64 `json:"LongPollDelay"`
}

// ParseNegotiate decodes and validates a negotiation response.
func ParseNegotiate(data []byte) (NegotiateResponse, error) {
	var r NegotiateResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return NegotiateResponse{}, fmt.Errorf("%w: %v", ErrUnexpectedResponseBody, err)
	}
	if err := r.Validate(); err != nil {
		return NegotiateResponse{}, err
	}
	return r, nil
}

// Validate checks that the hub offers what this client needs.
func (r NegotiateResponse) Validate() error {
	if r.ConnectionToken == "" {
		return ErrNoToken
	}
	if !r.TryWebSockets {
		return ErrWebSocketsUnsupported
	}
	if r.ProtocolVersion != "" && r.ProtocolVersion != ClientProtocol {
		return fmt.Errorf("%w: %s", ErrProtocolVersion, r.ProtocolVersion)
	}
	return nil
}

// KeepAlive returns the hub keep-alive interval, zero when the hub disabled
// keep-alives.
func (r NegotiateResponse) KeepAlive() time.Duration {
	return seconds(r.KeepAliveTimeout)
}

// Disconnect returns how long the hub keeps a dropped connection resumable.
func (r NegotiateResponse) Disconnect() time.Duration {
	return seconds(r.DisconnectTimeout)
}

// TransportConnect returns the transport connect timeout.
func (r NegotiateResponse) TransportConnect() time.Duration {
	return seconds(r.TransportConnectTimeout)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
