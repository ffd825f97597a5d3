package protocol

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Frame is an inbound payload prepared for display.
// The raw text is always preserved; parsing is best-effort.
type Frame struct {
	raw   string
	value *structpb.Value
}

// Decode wraps an inbound payload. It never fails: payloads that are not
// valid JSON are kept verbatim and simply report Structured() == false.
func Decode(data []byte) Frame {
	f := Frame{raw: string(data)}

	v := &structpb.Value{}
	if err := protojson.Unmarshal(data, v); err == nil {
		f.value = v
	}
	return f
}

// Text returns the payload exactly as received.
func (f Frame) Text() string {
	return f.raw
}

// String implements fmt.Stringer.
func (f Frame) String() string {
	return f.raw
}

// Structured reports whether the payload parsed as JSON.
func (f Frame) Structured() bool {
	return f.value != nil
}

// Field returns a top-level string field of a JSON object payload.
func (f Frame) Field(name string) (string, bool) {
	obj := f.value.GetStructValue()
	if obj == nil {
		return "", false
	}
	v, ok := obj.GetFields()[name]
	if !ok {
		return "", false
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}
