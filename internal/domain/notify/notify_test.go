package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

func TestForMilestone_HalfComplete(t *testing.T) {
	e := shared.NewMilestoneReachedEvent("user-1", "travel-basics", "", "half_complete",
		map[string]interface{}{"mastered_count": 3, "total_count": 6})

	p := ForMilestone(e)

	assert.Equal(t, shared.UserID("user-1"), p.UserID)
	assert.Equal(t, KindMilestone, p.Kind)
	assert.Equal(t, PriorityNormal, p.Priority)
	assert.Contains(t, p.Body, "3 of 6")
	assert.Equal(t, "half_complete", p.Data["milestone_type"])
	assert.Equal(t, "travel-basics", p.Data["unit_group_id"])
	_, hasItem := p.Data["item_id"]
	assert.False(t, hasItem, "group-scoped milestone must not carry an item id")
	require.NoError(t, p.Validate())
}

func TestForMilestone_KeywordCarriesItemID(t *testing.T) {
	e := shared.NewMilestoneReachedEvent("user-1", "travel-basics", "word-taxi", "keyword_completed", nil)

	p := ForMilestone(e)

	assert.Equal(t, "word-taxi", p.Data["item_id"])
	assert.True(t, strings.Contains(p.Title, "Keyword"))
}

func TestForMilestone_DetailSurvivesJSONNumbers(t *testing.T) {
	// After a broker round trip, JSON hands every number back as float64.
	e := shared.NewMilestoneReachedEvent("user-1", "travel-basics", "", "perfect_streak",
		map[string]interface{}{"streak": float64(5)})

	p := ForMilestone(e)

	assert.Contains(t, p.Body, "5 flawless")
}

func TestForMilestone_MissingDetailFallsBack(t *testing.T) {
	e := shared.NewMilestoneReachedEvent("user-1", "travel-basics", "", "half_complete", nil)

	p := ForMilestone(e)

	assert.NotEmpty(t, p.Body)
	assert.NotContains(t, p.Body, "%")
}

func TestForMilestone_SpeedBonusSeconds(t *testing.T) {
	e := shared.NewMilestoneReachedEvent("user-1", "travel-basics", "word-taxi", "speed_bonus",
		map[string]interface{}{"elapsed_ms": 12000})

	p := ForMilestone(e)

	assert.Contains(t, p.Body, "12 seconds")
}

func TestForMilestone_UnknownTypeGenericCopy(t *testing.T) {
	e := shared.NewMilestoneReachedEvent("user-1", "travel-basics", "", "someday_new_type", nil)

	p := ForMilestone(e)

	assert.NotEmpty(t, p.Title)
	require.NoError(t, p.Validate())
}

func TestForMagicMoment(t *testing.T) {
	e := shared.NewMagicMomentEvent("user-1", "travel-basics", 8)

	p := ForMagicMoment(e)

	assert.Equal(t, KindMagicMoment, p.Kind)
	assert.Equal(t, PriorityHigh, p.Priority)
	assert.True(t, p.Priority.ShouldSendImmediately())
	assert.Contains(t, p.Body, "All 8 keywords")
	assert.Equal(t, "travel-basics", p.Data["unit_group_id"])
	require.NoError(t, p.Validate())
}

func TestPushValidate(t *testing.T) {
	valid := Push{UserID: "user-1", Kind: KindMilestone, Title: "hi"}
	require.NoError(t, valid.Validate())

	missingUser := valid
	missingUser.UserID = ""
	assert.True(t, shared.IsValidation(missingUser.Validate()))

	badKind := valid
	badKind.Kind = "carrier_pigeon"
	assert.True(t, shared.IsValidation(badKind.Validate()))

	noTitle := valid
	noTitle.Title = ""
	assert.True(t, shared.IsValidation(noTitle.Validate()))
}
