package log

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Capture file extensions.
const (
	// Extension is the plain CBOR capture extension.
	Extension = ".ltlog"

	// CompressedSuffix marks zstd-compressed captures ("feed.ltlog.zst").
	CompressedSuffix = ".zst"
)

var (
	logEncMode cbor.EncMode
	logDecMode cbor.DecMode

	mapStringAnyType = reflect.TypeOf(map[string]any(nil))
)

func init() {
	var err error

	// Nanosecond timestamps, deterministic map order.
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	logEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create log CBOR encoder mode: %v", err))
	}

	// Payloads decode as map[string]any so they compare equal to the
	// JSON-shaped values they were captured from.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		DefaultMapType:    mapStringAnyType,
	}
	logDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create log CBOR decoder mode: %v", err))
	}
}

// EncodeEvent encodes an Event to CBOR bytes using integer keys for compactness.
func EncodeEvent(event Event) ([]byte, error) {
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes CBOR bytes into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder creates a CBOR encoder for log events that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return logEncMode.NewEncoder(w)
}

// NewDecoder creates a CBOR decoder for log events that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return logDecMode.NewDecoder(r)
}

// IsCompressed reports whether a capture path selects zstd compression.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedSuffix)
}

// compressWriter wraps w in a zstd stream.
func compressWriter(w io.Writer) (*zstd.Encoder, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

// decompressReader wraps r in a zstd stream.
func decompressReader(r io.Reader) (*zstd.Decoder, error) {
	return zstd.NewReader(r)
}
