// internal/store/operations.go
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/models"
)

// ==========================
// Applications
// ==========================

// SaveApplication validates the application, assigns it a unique id,
// appends it and updates the applicant's user record. Both collections are
// persisted together; nothing is kept in memory unless the write succeeded.
func (s *Store) SaveApplication(app models.Application) (models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if app.Timestamp == "" {
		app.Timestamp = models.FormatTimestamp(s.now())
	}
	if err := validateRequired(app); err != nil {
		return models.Application{}, err
	}

	ts, err := models.ParseTimestamp(app.Timestamp)
	if err != nil {
		ts = s.now()
	}
	app.ID = s.nextApplicationID(app.UserInfo.UserID, app.SelectedTeam, ts)

	applications := make([]models.Application, len(s.applications), len(s.applications)+1)
	copy(applications, s.applications)
	applications = append(applications, app)

	users := s.copyUsers()
	s.appendUserSummary(users, app)

	if err := s.persistBoth(applications, users); err != nil {
		return models.Application{}, err
	}

	s.applications = applications
	s.users = users
	metrics.ApplicationsSubmitted.WithLabelValues(app.SelectedTeam).Inc()
	return app, nil
}

func validateRequired(app models.Application) error {
	var missing []string
	if app.UserInfo.UserID == 0 {
		missing = append(missing, "user_info")
	}
	if app.SelectedTeam == "" {
		missing = append(missing, "selected_team")
	}
	if app.TeamName == "" {
		missing = append(missing, "team_name")
	}
	if app.Reason == "" {
		missing = append(missing, "reason")
	}
	if app.Experience == "" {
		missing = append(missing, "experience")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationFailedError("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// nextApplicationID derives an id from applicant, team and creation instant,
// bumping the instant on the off chance of a collision.
func (s *Store) nextApplicationID(userID int64, teamID string, ts time.Time) string {
	unix := ts.Unix()
	for {
		id := fmt.Sprintf("%d_%s_%d", userID, teamID, unix)
		if !s.applicationIDExists(id) {
			return id
		}
		unix++
	}
}

func (s *Store) applicationIDExists(id string) bool {
	for i := range s.applications {
		if s.applications[i].ID == id {
			return true
		}
	}
	return false
}

func (s *Store) copyUsers() map[string]models.UserRecord {
	users := make(map[string]models.UserRecord, len(s.users)+1)
	for key, user := range s.users {
		users[key] = user
	}
	return users
}

func (s *Store) appendUserSummary(users map[string]models.UserRecord, app models.Application) {
	key := strconv.FormatInt(app.UserInfo.UserID, 10)

	user, exists := users[key]
	if !exists {
		user = models.UserRecord{
			FirstSeen:    app.Timestamp,
			Applications: []models.ApplicationSummary{},
		}
	}
	user.FirstName = app.UserInfo.FirstName
	user.LastName = app.UserInfo.LastName
	user.Username = app.UserInfo.Username
	user.LastActive = app.Timestamp
	user.Applications = append(user.Applications, models.ApplicationSummary{
		ID:        app.ID,
		TeamID:    app.SelectedTeam,
		TeamName:  app.TeamName,
		Timestamp: app.Timestamp,
	})
	user.TotalApplications = len(user.Applications)
	users[key] = user
}

// HasApplied reports whether any stored application matches the applicant
// and team, regardless of age.
func (s *Store) HasApplied(userID int64, teamID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.applications {
		if s.applications[i].UserInfo.UserID == userID && s.applications[i].SelectedTeam == teamID {
			return true
		}
	}
	return false
}

// CanReapply reports whether the cooldown since the applicant's latest
// application to the team has elapsed. No prior application means true.
func (s *Store) CanReapply(userID int64, teamID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canReapplyAt(userID, teamID, s.now())
}

func (s *Store) canReapplyAt(userID int64, teamID string, now time.Time) bool {
	var latest time.Time
	found := false
	for i := range s.applications {
		app := &s.applications[i]
		if app.UserInfo.UserID != userID || app.SelectedTeam != teamID {
			continue
		}
		ts, err := models.ParseTimestamp(app.Timestamp)
		if err != nil {
			continue
		}
		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}
	if !found {
		return true
	}
	return !now.Before(latest.Add(s.cooldown))
}

// RecordDecision marks the applicant's latest application to the team as
// accepted or rejected and persists the change.
func (s *Store) RecordDecision(userID int64, teamID, status, decidedBy string) (models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.applications {
		if s.applications[i].UserInfo.UserID == userID && s.applications[i].SelectedTeam == teamID {
			idx = i
		}
	}
	if idx == -1 {
		return models.Application{}, apperrors.NewRecordNotFoundError(fmt.Sprintf("%d/%s", userID, teamID))
	}

	applications := make([]models.Application, len(s.applications))
	copy(applications, s.applications)
	applications[idx].Status = status
	applications[idx].DecidedBy = decidedBy
	applications[idx].DecidedAt = models.FormatTimestamp(s.now())

	if err := s.persistApplications(applications); err != nil {
		return models.Application{}, err
	}

	s.applications = applications
	metrics.DecisionsRecorded.WithLabelValues(status).Inc()
	return applications[idx], nil
}

// DeleteApplication removes the record and its mirrored user summaries.
// Returns false when no record matched; collections are left untouched.
func (s *Store) DeleteApplication(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.applicationIDExists(id) {
		return false, nil
	}

	applications := make([]models.Application, 0, len(s.applications)-1)
	for i := range s.applications {
		if s.applications[i].ID != id {
			applications = append(applications, s.applications[i])
		}
	}

	users := make(map[string]models.UserRecord, len(s.users))
	for key, user := range s.users {
		kept := make([]models.ApplicationSummary, 0, len(user.Applications))
		for _, summary := range user.Applications {
			if summary.ID != id {
				kept = append(kept, summary)
			}
		}
		user.Applications = kept
		user.TotalApplications = len(kept)
		users[key] = user
	}

	if err := s.persistBoth(applications, users); err != nil {
		return false, err
	}

	s.applications = applications
	s.users = users
	return true, nil
}

// ClearAll snapshots the current files into a timestamped backup directory,
// then resets applications and users to empty. The ban list is kept.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backupDir := filepath.Join(s.dataDir, "backup_"+s.now().Format("20060102_150405"))
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return apperrors.NewStoreIOFailedError("backup_dir", err)
	}
	for _, path := range []string{s.applicationsPath, s.usersPath} {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return apperrors.NewStoreIOFailedError(filepath.Base(path), err)
		}
		if err := os.WriteFile(filepath.Join(backupDir, filepath.Base(path)), data, 0644); err != nil {
			return apperrors.NewStoreIOFailedError(filepath.Base(path), err)
		}
	}

	applications := []models.Application{}
	users := make(map[string]models.UserRecord)
	if err := s.persistBoth(applications, users); err != nil {
		return err
	}

	s.applications = applications
	s.users = users
	s.logger.Info("Cleared applications and users", map[string]interface{}{
		"backup_dir": backupDir,
	})
	return nil
}

// ==========================
// Ban list
// ==========================

// Ban adds the applicant to the ban list. Returns false if already banned.
func (s *Store) Ban(userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strconv.FormatInt(userID, 10)
	if _, ok := s.banned[key]; ok {
		return false, nil
	}

	banned := make(map[string]struct{}, len(s.banned)+1)
	for id := range s.banned {
		banned[id] = struct{}{}
	}
	banned[key] = struct{}{}

	if err := s.persistBanned(banned); err != nil {
		return false, err
	}
	s.banned = banned
	return true, nil
}

// Unban removes the applicant from the ban list. Returns false if not banned.
func (s *Store) Unban(userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strconv.FormatInt(userID, 10)
	if _, ok := s.banned[key]; !ok {
		return false, nil
	}

	banned := make(map[string]struct{}, len(s.banned))
	for id := range s.banned {
		if id != key {
			banned[id] = struct{}{}
		}
	}

	if err := s.persistBanned(banned); err != nil {
		return false, err
	}
	s.banned = banned
	return true, nil
}

// IsBanned reports ban list membership.
func (s *Store) IsBanned(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.banned[strconv.FormatInt(userID, 10)]
	return ok
}

// ==========================
// Queries
// ==========================

// UserStatus assembles the applicant-facing view of a user's history.
func (s *Store) UserStatus(userID int64) (*models.UserStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[strconv.FormatInt(userID, 10)]
	if !ok {
		return nil, false
	}

	var applications []models.Application
	teamSeen := make(map[string]bool)
	var teams []string
	for i := range s.applications {
		app := s.applications[i]
		if app.UserInfo.UserID != userID {
			continue
		}
		applications = append(applications, app)
		if !teamSeen[app.SelectedTeam] {
			teamSeen[app.SelectedTeam] = true
			teams = append(teams, app.TeamName)
		}
	}

	// Newest first for display
	sort.SliceStable(applications, func(i, j int) bool {
		ti, errI := models.ParseTimestamp(applications[i].Timestamp)
		tj, errJ := models.ParseTimestamp(applications[j].Timestamp)
		if errI != nil || errJ != nil {
			return applications[i].Timestamp > applications[j].Timestamp
		}
		return ti.After(tj)
	})

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	return &models.UserStatus{
		UserID:            userID,
		Name:              name,
		TotalApplications: user.TotalApplications,
		Applications:      applications,
		TeamsApplied:      teams,
	}, true
}

// UserRecord returns the stored per-user record.
func (s *Store) UserRecord(userID int64) (models.UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[strconv.FormatInt(userID, 10)]
	return user, ok
}

// UserIDs returns every known applicant id in ascending order.
func (s *Store) UserIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for key := range s.users {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Applications returns a copy of all stored applications.
func (s *Store) Applications() []models.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	applications := make([]models.Application, len(s.applications))
	copy(applications, s.applications)
	return applications
}

// TeamApplications returns every application submitted to one team, in
// submission order.
func (s *Store) TeamApplications(teamID string) []models.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var applications []models.Application
	for i := range s.applications {
		if s.applications[i].SelectedTeam == teamID {
			applications = append(applications, s.applications[i])
		}
	}
	return applications
}

// AllUsers returns a copy of the per-user index keyed by applicant id string.
func (s *Store) AllUsers() map[string]models.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make(map[string]models.UserRecord, len(s.users))
	for key, user := range s.users {
		users[key] = user
	}
	return users
}
