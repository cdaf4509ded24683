package telemetry

import (
	"errors"
	"fmt"

	"github.com/livetiming/lt-go/pkg/topic"
)

// Decoder errors.
var (
	ErrUnsupportedTopic = errors.New("topic has no binary layout")
	ErrPayloadTooLarge  = errors.New("decompressed payload exceeds limit")
)

// EncodingError reports a payload that is not valid base64.
type EncodingError struct {
	Topic topic.Topic
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("telemetry %s: base64: %v", e.Topic, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecompressionError reports malformed raw deflate data.
type DecompressionError struct {
	Topic topic.Topic
	Err   error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("telemetry %s: inflate: %v", e.Topic, e.Err)
}

func (e *DecompressionError) Unwrap() error { return e.Err }

// SchemaError reports decompressed text that does not have the layout
// expected for the topic.
type SchemaError struct {
	Topic topic.Topic
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("telemetry %s: schema: %v", e.Topic, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
