package domain

import "time"

// Resource names used as cache and state keys
const (
	ResourceSubcategories = "subcategories"
)

// MenuSnapshot is a record of a successfully built menu, kept for audit
type MenuSnapshot struct {
	ID       string          `json:"id"`
	Resource string          `json:"resource"`
	TakenAt  time.Time       `json:"taken_at"`
	Records  int             `json:"records"`
	Layout   []ParentColumns `json:"layout"`
}

// Suggestion is a single search type-ahead entry
type Suggestion struct {
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Image string `json:"image,omitempty"`
}
