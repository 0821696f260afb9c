package domain

import (
	"bytes"
	"encoding/json"
)

// ParentRef is the parent category embedded in a subcategory record
type ParentRef struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts an embedded object and ignores every other shape
// (unpopulated id strings, numbers, null), leaving the parent unresolved.
func (p *ParentRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*p = ParentRef{}
		return nil
	}

	type plain ParentRef
	var ref plain
	if err := json.Unmarshal(data, &ref); err != nil {
		*p = ParentRef{}
		return nil
	}

	*p = ParentRef(ref)
	return nil
}

// Subcategory is a single record of the backend subcategory listing
type Subcategory struct {
	ID             string     `json:"_id,omitempty"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug,omitempty"`
	ParentCategory *ParentRef `json:"parentCategory,omitempty"`
}

// ParentName returns the resolvable parent name or "" when there is none
func (s Subcategory) ParentName() string {
	if s.ParentCategory == nil {
		return ""
	}
	return s.ParentCategory.Name
}

// RouteKey is the path segment used to link to the subcategory: slug, falling back to id
func (s Subcategory) RouteKey() string {
	if s.Slug != "" {
		return s.Slug
	}
	return s.ID
}
