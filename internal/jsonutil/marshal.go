package jsonutil

import "encoding/json"

// MarshalArgumentsOrEmpty serializes tool-call arguments back to the JSON
// object text providers expect on the wire, falling back to "{}" for a nil
// or unmarshalable map rather than propagating an error up through every
// call site that only ever deals with already-parsed arguments.
func MarshalArgumentsOrEmpty(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}
