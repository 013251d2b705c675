// internal/models/user.go
package models

// ApplicationSummary mirrors one application inside a user record.
type ApplicationSummary struct {
	ID        string `json:"id"`
	TeamID    string `json:"team_id"`
	TeamName  string `json:"team_name"`
	Timestamp string `json:"timestamp"`
}

// UserRecord is the per-applicant index entry persisted in users.json,
// keyed by the applicant id rendered as a string.
type UserRecord struct {
	FirstName         string               `json:"first_name"`
	LastName          string               `json:"last_name"`
	Username          string               `json:"username"`
	FirstSeen         string               `json:"first_seen"`
	LastActive        string               `json:"last_active"`
	Applications      []ApplicationSummary `json:"applications"`
	TotalApplications int                  `json:"total_applications"`
}

// UserStatus is the answer to a /status query: the record plus the resolved
// list of full application records, newest first.
type UserStatus struct {
	UserID            int64
	Name              string
	TotalApplications int
	Applications      []Application
	TeamsApplied      []string
}
