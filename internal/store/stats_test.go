// internal/store/stats_test.go
package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-bot/internal/models"
)

func TestStatistics_EmptyStore(t *testing.T) {
	s := setupStore(t)

	stats := s.Statistics()
	assert.Equal(t, 0, stats.TotalApplications)
	assert.Equal(t, 0, stats.TotalUsers)
	assert.Empty(t, stats.TeamCounts)
	assert.Equal(t, 0, stats.RecentApplications)
	assert.Equal(t, 0, stats.ActiveUsers)
}

func TestStatistics_TotalMatchesTeamCounts(t *testing.T) {
	s := setupStore(t)

	seed := []struct {
		userID int64
		teamID string
		name   string
	}{
		{111, "team_exams", "تيم الاختبارات"},
		{222, "team_exams", "تيم الاختبارات"},
		{333, "team_support", "تيم الدعم الفني"},
		{444, "team_collections", "تيم التجميعات"},
		{555, "team_collections", "تيم التجميعات"},
	}
	for _, entry := range seed {
		_, err := s.SaveApplication(makeApplication(entry.userID, entry.teamID, entry.name))
		require.NoError(t, err)
	}

	stats := s.Statistics()
	assert.Equal(t, 5, stats.TotalApplications)
	assert.Equal(t, 5, stats.TotalUsers)
	assert.Equal(t, 2, stats.TeamCounts["team_exams"])
	assert.Equal(t, 1, stats.TeamCounts["team_support"])
	assert.Equal(t, 2, stats.TeamCounts["team_collections"])

	sum := 0
	for _, count := range stats.TeamCounts {
		sum += count
	}
	assert.Equal(t, stats.TotalApplications, sum)
}

func TestStatistics_RecentAndActiveWindows(t *testing.T) {
	s := setupStore(t)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	// Old applicant: submitted 40 days ago, inactive since
	s.now = func() time.Time { return now.Add(-40 * 24 * time.Hour) }
	old := makeApplication(111, "team_exams", "تيم الاختبارات")
	old.Timestamp = models.FormatTimestamp(now.Add(-40 * 24 * time.Hour))
	_, err := s.SaveApplication(old)
	require.NoError(t, err)

	// Fresh applicant: submitted an hour ago
	s.now = func() time.Time { return now.Add(-1 * time.Hour) }
	fresh := makeApplication(222, "team_support", "تيم الدعم الفني")
	fresh.Timestamp = models.FormatTimestamp(now.Add(-1 * time.Hour))
	_, err = s.SaveApplication(fresh)
	require.NoError(t, err)

	s.now = func() time.Time { return now }
	stats := s.Statistics()

	assert.Equal(t, 2, stats.TotalApplications)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.RecentApplications)
	assert.Equal(t, 1, stats.ActiveUsers)
}
