// internal/models/stats.go
package models

// Stats is the aggregate view served to /stats. All fields are computed on
// demand from the applications collection; a zero value is returned when the
// computation fails.
type Stats struct {
	TotalApplications  int            `json:"total_applications"`
	TotalUsers         int            `json:"total_users"`
	TeamCounts         map[string]int `json:"team_counts"`
	RecentApplications int            `json:"recent_applications"`
	ActiveUsers        int            `json:"active_users"`
}

// BroadcastReport summarizes one fan-out run.
type BroadcastReport struct {
	RunID     string `json:"run_id"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Timestamp string `json:"timestamp"`
}
