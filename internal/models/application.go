// internal/models/application.go
package models

// Application statuses recorded after a reviewer decision. Records written
// before decision tracking existed carry no status at all.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Applicant is the identity snapshot captured when an application is
// assembled. It is immutable for the lifetime of the application record.
type Applicant struct {
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// FullName joins first and last name, skipping an empty last name.
func (a Applicant) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// HasUsername reports whether the applicant has a public handle. Applicants
// without one are asked for a contact number during the form.
func (a Applicant) HasUsername() bool {
	return a.Username != ""
}

// Application is one submitted team-join request. The json tags are the
// on-disk format of applications.json and must stay stable.
type Application struct {
	ID           string    `json:"id"`
	UserInfo     Applicant `json:"user_info"`
	SelectedTeam string    `json:"selected_team"`
	TeamName     string    `json:"team_name"`
	Gender       string    `json:"gender,omitempty"`
	Reason       string    `json:"reason"`
	Experience   string    `json:"experience"`
	Whatsapp     string    `json:"whatsapp,omitempty"`
	Timestamp    string    `json:"timestamp"`

	Status    string `json:"status,omitempty"`
	DecidedBy string `json:"decided_by,omitempty"`
	DecidedAt string `json:"decided_at,omitempty"`
}
