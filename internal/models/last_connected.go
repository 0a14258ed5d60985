package models

// LastConnectedRecord is the cached payload recording when a user was last active.
type LastConnectedRecord struct {
	ID              int64 `json:"id"`
	LastConnectedAt int64 `json:"last_connected_at"`
}
