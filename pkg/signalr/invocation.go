package signalr

import (
	"encoding/json"
	"strconv"

	"github.com/livetiming/lt-go/pkg/topic"
)

// Invocation is a client-to-hub method call.
type Invocation struct {
	Hub       string `json:"H"`
	Method    string `json:"M"`
	Arguments []any  `json:"A"`
	ID        int    `json:"I"`
}

// MethodSubscribe is the hub method subscribing to topics.
const MethodSubscribe = "Subscribe"

// SubscribeInvocation builds the call subscribing to topics.
func SubscribeInvocation(hub string, topics []topic.Topic, id int) Invocation {
	return Invocation{
		Hub:       hub,
		Method:    MethodSubscribe,
		Arguments: []any{topic.Names(topics)},
		ID:        id,
	}
}

// Encode returns the invocation as wire JSON.
func (inv Invocation) Encode() ([]byte, error) {
	return json.Marshal(inv)
}

// CallID returns the id as the hub echoes it in results.
func (inv Invocation) CallID() string {
	return strconv.Itoa(inv.ID)
}
