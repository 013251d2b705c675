// internal/store/stats.go
package store

import (
	"time"

	"intake-bot/internal/models"
)

const (
	recentWindow = 7 * 24 * time.Hour
	activeWindow = 30 * 24 * time.Hour
)

// Statistics computes aggregate counts over the loaded collections. Any
// internal failure yields zeroed statistics rather than an error.
func (s *Store) Statistics() (stats models.Stats) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Statistics computation failed", map[string]interface{}{
				"panic": r,
			})
			stats = models.Stats{TeamCounts: map[string]int{}}
		}
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats = models.Stats{TeamCounts: make(map[string]int)}
	now := s.now()

	uniqueApplicants := make(map[int64]struct{})
	for i := range s.applications {
		app := &s.applications[i]
		stats.TotalApplications++
		stats.TeamCounts[app.SelectedTeam]++
		uniqueApplicants[app.UserInfo.UserID] = struct{}{}
		if ts, err := models.ParseTimestamp(app.Timestamp); err == nil && now.Sub(ts) <= recentWindow {
			stats.RecentApplications++
		}
	}

	stats.TotalUsers = len(uniqueApplicants)
	for _, user := range s.users {
		if ts, err := models.ParseTimestamp(user.LastActive); err == nil && now.Sub(ts) <= activeWindow {
			stats.ActiveUsers++
		}
	}
	return stats
}
