package plugin

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeArgs serializes plugin arguments for PluginArgsEnv.
func EncodeArgs[A any](args A) (string, error) {
	buff, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding plugin args: %w", err)
	}
	return string(buff), nil
}

// DecodeArgs is the inverse of EncodeArgs. Unknown fields are rejected: they
// mean the coordinator and driver were built from different plugin versions.
func DecodeArgs[A any](s string) (A, error) {
	var args A
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return args, fmt.Errorf("decoding plugin args: %w", err)
	}
	if dec.More() {
		return args, fmt.Errorf("decoding plugin args: trailing data after value")
	}
	return args, nil
}
