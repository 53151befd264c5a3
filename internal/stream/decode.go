package stream

import (
	"encoding/json"

	"neo-dashboard/internal/models"
	"neo-dashboard/internal/quotes"
)

// Decode parses one raw push-channel payload into normalized quote
// records. The broker sends string-encoded JSON that may be a single
// record, a list, or a {data: ...} wrapper; some payloads arrive
// double-encoded (a JSON string containing JSON). Unparseable payloads
// decode to an empty slice, never an error: a malformed message must
// not take down the stream.
func Decode(payload []byte) []models.Quote {
	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil
	}
	if s, ok := raw.(string); ok {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil
		}
	}
	return quotes.Normalize(raw)
}
