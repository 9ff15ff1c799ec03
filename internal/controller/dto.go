package controller

// ScheduleRequest enqueues a local write for eventual push.
type ScheduleRequest struct {
	EntityType string         `json:"entity_type" validate:"required"`
	EntityID   string         `json:"entity_id"`
	Operation  string         `json:"operation" validate:"required,oneof=create update delete"`
	Payload    map[string]any `json:"payload"`
}

// ForceSyncRequest asks for an entity's pending entry to be pushed now,
// skipping the remainder of its debounce window.
type ForceSyncRequest struct {
	EntityType string `json:"entity_type" validate:"required"`
	EntityID   string `json:"entity_id" validate:"required"`
}

// PendingResponse reports how many entries await push.
type PendingResponse struct {
	Pending int `json:"pending"`
}

// CycleResponse reports the outcome of a manually triggered drain cycle.
type CycleResponse struct {
	Status string `json:"status"`
}

// ForceSyncResponse reports whether the entity had an in-flight entry.
type ForceSyncResponse struct {
	Dispatched bool `json:"dispatched"`
}

// EntityWriteResponse acknowledges a cache-then-schedule write.
type EntityWriteResponse struct {
	Status   string `json:"status"`
	EntityID string `json:"entity_id"`
}

// EntityListResponse carries cached documents of one type.
type EntityListResponse struct {
	Items []map[string]any `json:"items"`
	Count int              `json:"count"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
