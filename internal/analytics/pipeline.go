package analytics

import "time"

// StreamSnapshot is one stream's point-in-time listener summary.
type StreamSnapshot struct {
	StreamName string         `json:"stream_name"`
	Active     int            `json:"active"`
	Countries  map[string]int `json:"countries"`
}

// Snapshot is a process-wide point-in-time summary across all streams,
// logged periodically by the relay monitor rather than served over HTTP.
type Snapshot struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	TotalActive int                        `json:"total_active"`
	Streams     map[string]StreamSnapshot  `json:"streams"`
	ClientTypes map[string]int             `json:"client_types"`
}
