package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Every engine value is a string, and every store value is JSON, so plain
// records marshal directly. Raw binary (message content) rides in a
// one-key envelope that keeps the byte-exact payload inside the same
// format:
//
//	{"$bytes":"<base64>"}

type bytesEnvelope struct {
	Bytes string `json:"$bytes"`
}

func encodeRecord(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(data), nil
}

// decodeRecord unmarshals a stored value. Malformed data is a hard error
// naming the key; it is never silently coerced.
func decodeRecord(key, value string, out any) error {
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func encodeBytes(blob []byte) (string, error) {
	env := bytesEnvelope{Bytes: base64.StdEncoding.EncodeToString(blob)}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode bytes: %w", err)
	}
	return string(data), nil
}

func decodeBytes(key, value string) ([]byte, error) {
	var env bytesEnvelope
	if err := json.Unmarshal([]byte(value), &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	blob, err := base64.StdEncoding.DecodeString(env.Bytes)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return blob, nil
}
