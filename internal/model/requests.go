package model

// Error is the backend's error envelope.
type Error struct {
	Code    int    `json:"Code"`
	Message string `json:"Message"`
}

// LoginRequest carries form credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// BulkPeerRequest addresses several peers at once. Reason is stored as the
// disabled reason for bulk-disable.
type BulkPeerRequest struct {
	Identifiers []string `json:"Identifiers"`
	Reason      string   `json:"Reason"`
}

// BulkUserRequest addresses several users at once.
type BulkUserRequest struct {
	Identifiers []string `json:"Identifiers"`
	Reason      string   `json:"Reason"`
}

// MultiPeerRequest asks the backend to create one peer per identifier.
type MultiPeerRequest struct {
	Identifiers []string `json:"Identifiers"`
	Suffix      string   `json:"Suffix"`
}
