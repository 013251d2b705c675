// internal/messages/messages_test.go
package messages

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_SubstitutesPlaceholders(t *testing.T) {
	text := Render(AskGender, map[string]string{"team_name": "تيم الاختبارات"})

	assert.Contains(t, text, "تيم الاختبارات")
	assert.NotContains(t, text, "{{team_name}}")
}

func TestRender_MultiplePlaceholders(t *testing.T) {
	text := Render(Accepted, map[string]string{
		"team_name":  "تيم الدعم الفني",
		"admin_name": "أحمد",
		"timestamp":  "2026-01-02 15:04:05",
	})

	assert.Contains(t, text, "تيم الدعم الفني")
	assert.Contains(t, text, "أحمد")
	assert.Contains(t, text, "2026-01-02 15:04:05")
	assert.NotContains(t, text, "{{")
}

func TestRender_UnknownKeyRendersEmpty(t *testing.T) {
	assert.Empty(t, Render("no_such_key", nil))
}

func TestRender_NilDataLeavesTemplateIntact(t *testing.T) {
	assert.Equal(t, Get(Welcome), Render(Welcome, nil))
}

func TestCatalog_EntriesNonEmpty(t *testing.T) {
	keys := []string{
		Welcome, Menu, Help,
		AskGender, AskReason, AskExperience, AskWhatsapp,
		ReasonTooShort, ReasonTooLong, ExperienceTooShort, ExperienceTooLong,
		WhatsappInvalid, Submitted, SaveFailed, AlreadyApplied, Banned,
		Cancel, Unknown, Error,
		Status, StatusEmpty, StatsReport, StatsTeamLine,
		Notification, Accepted, Rejected,
		AcceptConfirmation, RejectConfirmation, DecisionError,
		RelayReply, UserForward, ChatEnded,
		BroadcastHeader, BroadcastTooShort, BroadcastNoUsers,
	}
	for _, key := range keys {
		assert.NotEmpty(t, Get(key), "catalog entry %s", key)
	}
}

func TestRender_HTMLTagsBalanced(t *testing.T) {
	for _, key := range []string{Notification, Accepted, Rejected, StatsReport, Status} {
		text := Get(key)
		opens := strings.Count(text, "<b>")
		closes := strings.Count(text, "</b>")
		assert.Equal(t, opens, closes, "unbalanced <b> tags in %s", key)
	}
}

func TestMediaTypeName(t *testing.T) {
	assert.Equal(t, "الصورة", MediaTypeName("photo"))
	assert.Equal(t, "الرسالة الصوتية", MediaTypeName("voice"))
	assert.Equal(t, "document", MediaTypeName("document"))
}

func TestGenderName(t *testing.T) {
	assert.Equal(t, "ذكر", GenderName("male"))
	assert.Equal(t, "أنثى", GenderName("female"))
	assert.Equal(t, "other", GenderName("other"))
}
