package task

import "time"

// RefreshTask asks the workers to rebuild a cached resource
type RefreshTask struct {
	Resource    string    `json:"resource"`     // Cache key of the resource, e.g. "subcategories"
	Reason      string    `json:"reason"`       // Free text: "admin", "cli", "webhook"
	RequestedAt time.Time `json:"requested_at"` // When the refresh was asked for
}

func (t *RefreshTask) TaskType() string {
	return TypeRefresh
}

func (t *RefreshTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
