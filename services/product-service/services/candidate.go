package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/yashrajoria/catalog-import/services/product-service/models"
)

// ParseResult is either Ok, carrying a Candidate, or a failure with Reason.
type ParseResult struct {
	Candidate models.ImportCandidate
	Reason    string
}

func (r ParseResult) Ok() bool { return r.Reason == "" }

func parseFailed(format string, args ...interface{}) ParseResult {
	return ParseResult{Reason: fmt.Sprintf(format, args...)}
}

// ParseCandidate reads a queue payload. Unknown keys are ignored; title,
// description, price and count may each be a string, a number, null or
// absent. It never panics on malformed input.
func ParseCandidate(body []byte) ParseResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return parseFailed("payload is not a JSON object: %v", err)
	}

	var c models.ImportCandidate
	for _, f := range []struct {
		name string
		dst  *models.Field
	}{
		{"title", &c.Title},
		{"description", &c.Description},
		{"price", &c.Price},
		{"count", &c.Count},
	} {
		raw, ok := fields[f.name]
		if !ok {
			continue
		}
		v, err := parseField(raw)
		if err != nil {
			return parseFailed("%s: %v", f.name, err)
		}
		*f.dst = v
	}
	return ParseResult{Candidate: c}
}

func parseField(raw json.RawMessage) (models.Field, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return models.Field{}, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return models.Field{}, err
		}
		return models.Field{Raw: s, Present: true}, nil
	case '{', '[', 't', 'f':
		return models.Field{}, fmt.Errorf("must be a string or a number")
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return models.Field{}, err
		}
		return models.Field{Raw: n.String(), Present: true}, nil
	}
}
