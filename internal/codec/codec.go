// Package codec converts raw frame payloads into structured messages and back.
package codec

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// api mirrors encoding/json behaviour, including sorted map keys on encode.
var api = sonic.ConfigStd

// Message is a decoded JSON object.
type Message map[string]interface{}

// DecodeError reports a payload that is not a well-formed JSON object.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "decode: " + e.Reason + ": " + e.Err.Error()
	}

	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses data into a Message. It fails with *DecodeError when the payload
// is not valid JSON or its top-level value is not an object.
func Decode(data []byte) (Message, error) {
	var value interface{}
	if err := api.Unmarshal(data, &value); err != nil {
		return nil, &DecodeError{Reason: "malformed payload", Err: err}
	}

	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("top-level value is %s, want object", kindOf(value))}
	}

	return Message(obj), nil
}

// Encode serializes msg. Messages built from JSON-compatible values never fail.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		msg = Message{}
	}

	return api.Marshal(map[string]interface{}(msg))
}

// String returns the string field key, if present.
func (m Message) String(key string) (string, bool) {
	s, ok := m[key].(string)

	return s, ok
}

// Number returns the numeric field key, if present.
func (m Message) Number(key string) (float64, bool) {
	n, ok := m[key].(float64)

	return n, ok
}

func kindOf(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}
