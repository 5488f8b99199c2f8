package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// ErrMalformedPayload is returned when an inbound message cannot be decoded
// into a Payload.
var ErrMalformedPayload = errors.New("malformed payload")

// Payload is the wire shape of an inbound notification:
//
//	{ "id"?, "message", "type"?, "description"?, "created_at"?, ...extra }
//
// Unknown fields are kept in Extra and passed through to the stored record.
type Payload struct {
	ID          string
	Message     string
	Type        string
	Description string
	SentAt      time.Time // server timestamp ("created_at"), zero if absent
	Extra       map[string]any
}

// DecodePayload parses a single JSON object. A missing message decodes to an
// empty string; a value that is not an object, or known fields of the wrong
// JSON type, yield ErrMalformedPayload.
func DecodePayload(data []byte) (Payload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw == nil {
		return Payload{}, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}

	var p Payload
	for key, value := range raw {
		var err error
		switch key {
		case "id":
			p.ID, err = decodeID(value)
		case "message":
			err = decodeString(value, &p.Message)
		case "type":
			err = decodeString(value, &p.Type)
		case "description":
			err = decodeString(value, &p.Description)
		case "created_at":
			if !p.decodeSentAt(value) {
				p.setExtra(key, value)
			}
		default:
			p.setExtra(key, value)
		}
		if err != nil {
			return Payload{}, fmt.Errorf("%w: field %q: %v", ErrMalformedPayload, key, err)
		}
	}

	return p, nil
}

// UnmarshalJSON implements json.Unmarshaler using DecodePayload.
func (p *Payload) UnmarshalJSON(data []byte) error {
	decoded, err := DecodePayload(data)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// MarshalJSON flattens Extra alongside the known fields. Known fields win over
// extras with the same key.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+5)
	maps.Copy(out, p.Extra)

	if p.ID != "" {
		out["id"] = p.ID
	}
	out["message"] = p.Message
	if p.Type != "" {
		out["type"] = p.Type
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if !p.SentAt.IsZero() {
		out["created_at"] = p.SentAt.UTC().Format(time.RFC3339Nano)
	}

	return json.Marshal(out)
}

func (p *Payload) setExtra(key string, value json.RawMessage) {
	var v any
	if err := json.Unmarshal(value, &v); err != nil {
		return
	}
	if p.Extra == nil {
		p.Extra = make(map[string]any)
	}
	p.Extra[key] = v
}

func (p *Payload) decodeSentAt(value json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return false
	}
	p.SentAt = t
	return true
}

func decodeString(value json.RawMessage, dst *string) error {
	if isNull(value) {
		return nil
	}
	return json.Unmarshal(value, dst)
}

// decodeID accepts string and numeric ids and normalizes both to a string.
func decodeID(value json.RawMessage) (string, error) {
	if isNull(value) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("id must be a string or number")
	}
	return n.String(), nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}
