package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// DecodeSubcategories decodes a subcategory listing body.
//
// A body that is not a JSON array (an error object, an empty body) yields an
// empty slice and no error. Array elements that are not objects are skipped.
// Only a syntactically broken array is reported as an error.
func DecodeSubcategories(body []byte) ([]Subcategory, error) {
	elems, ok, err := decodeArray(body)
	if err != nil || !ok {
		return []Subcategory{}, err
	}

	records := make([]Subcategory, 0, len(elems))
	for _, raw := range elems {
		if !isObject(raw) {
			continue
		}
		var rec Subcategory
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.Debugf("Skipping malformed subcategory record: %v", err)
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// DecodeSuggestions decodes a search suggestion body with the same tolerance
// as DecodeSubcategories.
func DecodeSuggestions(body []byte) ([]Suggestion, error) {
	elems, ok, err := decodeArray(body)
	if err != nil || !ok {
		return []Suggestion{}, err
	}

	suggestions := make([]Suggestion, 0, len(elems))
	for _, raw := range elems {
		if !isObject(raw) {
			continue
		}
		var s Suggestion
		if err := json.Unmarshal(raw, &s); err != nil {
			log.Debugf("Skipping malformed suggestion: %v", err)
			continue
		}
		suggestions = append(suggestions, s)
	}

	return suggestions, nil
}

func decodeArray(body []byte) ([]json.RawMessage, bool, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return nil, false, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, false, fmt.Errorf("failed to decode array body: %w", err)
	}

	return elems, true, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
