package quest

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CityClaim/internal/geo"
	"CityClaim/pkg/errors"
)

func intPtr(v int) *int { return &v }

func sequence(start int64) IDGenerator {
	next := start
	return func() int64 {
		next++
		return next
	}
}

func testCandidates() []Candidate {
	return []Candidate{
		{BusinessID: 1, Name: "Cafe", DistanceMeters: 120, MinPercentOff: intPtr(10), MaxPercentOff: intPtr(30), IsOpen: true},
		{BusinessID: 2, Name: "Old Bridge", DistanceMeters: 80, IsOpen: true},
		{BusinessID: 3, Name: "Bakery", DistanceMeters: 60, MinPercentOff: intPtr(5), MaxPercentOff: intPtr(15), IsOpen: false},
	}
}

var limits = Limits{Window: 120 * time.Minute, MaxPoints: 100}

func TestValidate_ClampsPercentOff(t *testing.T) {
	now := time.Now()
	batch := []Suggestion{
		{BusinessID: 1, Type: "deal", Title: "Big deal", SuggestedPercentOff: intPtr(150), ExpiresInMinutes: 30},
		{BusinessID: 1, Type: "deal", Title: "Tiny deal", SuggestedPercentOff: intPtr(-20), ExpiresInMinutes: 30},
	}

	quests, err := Validate(batch, testCandidates(), limits, sequence(0), now)
	require.NoError(t, err)
	require.Len(t, quests, 2)
	require.NotNil(t, quests[0].PercentOff)
	assert.Equal(t, 30, *quests[0].PercentOff)
	require.NotNil(t, quests[1].PercentOff)
	assert.Equal(t, 10, *quests[1].PercentOff)
}

func TestValidate_LandmarkHasNoPercentOff(t *testing.T) {
	quests, err := Validate([]Suggestion{
		{BusinessID: 2, Type: "deal", Title: "Free bridge", SuggestedPercentOff: intPtr(50)},
	}, testCandidates(), limits, sequence(0), time.Now())
	require.NoError(t, err)
	require.Len(t, quests, 1)
	assert.Nil(t, quests[0].PercentOff)
	assert.Equal(t, TypeVisit, quests[0].Type)
}

func TestValidate_RejectsUnknownBusiness(t *testing.T) {
	quests, err := Validate([]Suggestion{
		{BusinessID: 999, Type: "visit", Title: "Ghost"},
		{BusinessID: 2, Type: "visit", Title: "Bridge"},
	}, testCandidates(), limits, sequence(0), time.Now())
	require.NoError(t, err)
	require.Len(t, quests, 1)
	assert.Equal(t, int64(2), quests[0].BusinessID)
}

func TestValidate_AllRejected(t *testing.T) {
	_, err := Validate([]Suggestion{
		{BusinessID: 999},
		{BusinessID: 2, Type: "teleport"},
	}, testCandidates(), limits, sequence(0), time.Now())
	require.Error(t, err)

	var verr *errors.QuestValidationError
	require.True(t, stderrors.As(err, &verr))
	assert.Equal(t, 2, verr.Rejected)
	assert.Len(t, verr.Reasons, 2)
	assert.True(t, stderrors.Is(err, errors.QuestValidationFailed))
}

func TestValidate_ExpiryAndPointsClamped(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	quests, err := Validate([]Suggestion{
		{BusinessID: 2, Title: "a", ExpiresInMinutes: 100000, SuggestedPoints: 5000},
		{BusinessID: 2, Title: "b", ExpiresInMinutes: -5, SuggestedPoints: -3},
		{BusinessID: 2, Title: "c", ExpiresInMinutes: 45, SuggestedPoints: 40},
	}, testCandidates(), limits, sequence(0), now)
	require.NoError(t, err)
	require.Len(t, quests, 3)

	assert.Equal(t, 120, quests[0].ExpiresInMinutes)
	assert.Equal(t, 100, quests[0].Points)
	assert.Equal(t, 120, quests[1].ExpiresInMinutes)
	assert.Equal(t, 0, quests[1].Points)
	assert.Equal(t, 45, quests[2].ExpiresInMinutes)
	assert.Equal(t, now.Add(45*time.Minute), quests[2].ExpiresAt)

	for _, q := range quests {
		assert.LessOrEqual(t, q.ExpiresInMinutes, 120)
	}
}

func TestValidate_FreshIDs(t *testing.T) {
	batch := []Suggestion{
		{ID: "q1", BusinessID: 2, Title: "a"},
		{ID: "q1", BusinessID: 2, Title: "b"},
	}
	ids := sequence(100)

	first, err := Validate(batch, testCandidates(), limits, ids, time.Now())
	require.NoError(t, err)
	second, err := Validate(batch, testCandidates(), limits, ids, time.Now())
	require.NoError(t, err)

	seen := map[int64]bool{}
	for _, q := range append(first, second...) {
		assert.False(t, seen[q.ID], "duplicate id %d", q.ID)
		seen[q.ID] = true
	}
}

func TestValidate_AdversarialInputStaysInBounds(t *testing.T) {
	cands := testCandidates()
	index := Index(cands)
	values := []int{-1 << 30, -1, 0, 5, 10, 29, 30, 31, 100, 1 << 30}

	var batch []Suggestion
	for _, v := range values {
		for _, id := range []int64{1, 2, 3} {
			batch = append(batch, Suggestion{
				BusinessID:          FlexInt64(id),
				Type:                "deal",
				Title:               "x",
				SuggestedPercentOff: intPtr(v),
				ExpiresInMinutes:    v,
				SuggestedPoints:     v,
			})
		}
	}

	quests, err := Validate(batch, cands, limits, sequence(0), time.Now())
	require.NoError(t, err)
	for _, q := range quests {
		c := index[q.BusinessID]
		if c.HasCouponBounds() {
			require.NotNil(t, q.PercentOff)
			assert.GreaterOrEqual(t, *q.PercentOff, *c.MinPercentOff)
			assert.LessOrEqual(t, *q.PercentOff, *c.MaxPercentOff)
		} else {
			assert.Nil(t, q.PercentOff)
		}
		assert.Greater(t, q.ExpiresInMinutes, 0)
		assert.LessOrEqual(t, q.ExpiresInMinutes, 120)
		assert.GreaterOrEqual(t, q.Points, 0)
		assert.LessOrEqual(t, q.Points, 100)
	}
}

func TestFallback_Deterministic(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Fallback(testCandidates(), 2, time.Hour, sequence(0), now)
	b := Fallback(testCandidates(), 2, time.Hour, sequence(50), now)

	require.Len(t, a, 2)
	require.Len(t, b, 2)
	// 营业中的优先：Old Bridge(80m) 然后 Cafe(120m)，关门的 Bakery 排最后
	assert.Equal(t, int64(2), a[0].BusinessID)
	assert.Equal(t, int64(1), a[1].BusinessID)
	for i := range a {
		assert.Equal(t, a[i].BusinessID, b[i].BusinessID)
		assert.Equal(t, a[i].Title, b[i].Title)
		assert.Equal(t, a[i].Points, b[i].Points)
		assert.NotEqual(t, a[i].ID, b[i].ID)
		assert.Equal(t, SourceTemplate, a[i].Source)
	}
	require.NotNil(t, a[1].PercentOff)
	assert.Equal(t, 10, *a[1].PercentOff)
	assert.Nil(t, a[0].PercentOff)

	assert.Empty(t, Fallback(nil, 3, time.Hour, sequence(0), now))
}

func TestBuildCandidates(t *testing.T) {
	origin := geo.Point{Lat: 31.2304, Lng: 121.4737}
	noon := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	places := []Place{
		{BusinessID: 9, Name: "far", Location: geo.Point{Lat: 31.30, Lng: 121.4737}},
		{BusinessID: 5, Name: "near", Location: geo.Point{Lat: 31.2310, Lng: 121.4737}},
		{BusinessID: 4, Name: "night", Location: geo.Point{Lat: 31.2310, Lng: 121.4737},
			OpensAtMinute: intPtr(22 * 60), ClosesAtMinute: intPtr(4 * 60),
			MinPercentOff: intPtr(40), MaxPercentOff: intPtr(20)},
	}

	cands := BuildCandidates(places, origin, noon, 1500, time.UTC)
	require.Len(t, cands, 2)
	assert.Equal(t, int64(4), cands[0].BusinessID, "equal distance sorts by id")
	assert.False(t, cands[0].IsOpen)
	assert.Equal(t, 20, *cands[0].MinPercentOff)
	assert.Equal(t, 40, *cands[0].MaxPercentOff)
	assert.True(t, cands[1].IsOpen)
}

func TestDecodeSuggestions(t *testing.T) {
	list, err := DecodeSuggestions([]byte(`{"quests":[{"business_id":"12","type":"deal","suggested_percent_off":150,"expires_in_minutes":30}]}`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, FlexInt64(12), list[0].BusinessID)
	assert.Equal(t, 150, *list[0].SuggestedPercentOff)

	list, err = DecodeSuggestions([]byte(`[{"business_id":7},{"business_id":null}]`))
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, FlexInt64(0), list[1].BusinessID)

	list, err = DecodeSuggestions([]byte(`{"data":{"quests":[]}}`))
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = DecodeSuggestions([]byte(`<html>oops</html>`))
	assert.Error(t, err)
	_, err = DecodeSuggestions([]byte(`{"message":"rate limited"}`))
	assert.Error(t, err)
}

func TestDecodeSuggestions_OnlyExactIntegerIDs(t *testing.T) {
	list, err := DecodeSuggestions([]byte(`[
		{"business_id":"3.9"},
		{"business_id":1.5},
		{"business_id":"1e0"},
		{"business_id":2e0},
		{"business_id":"cafe"},
		{"business_id":true},
		{"business_id":" 2"},
		{"business_id":"2"},
		{"business_id":3}
	]`))
	require.NoError(t, err)
	require.Len(t, list, 9)

	for i := 0; i < 7; i++ {
		assert.Equal(t, FlexInt64(0), list[i].BusinessID, "entry %d", i)
	}
	assert.Equal(t, FlexInt64(2), list[7].BusinessID)
	assert.Equal(t, FlexInt64(3), list[8].BusinessID)

	quests, err := Validate(list, testCandidates(), limits, sequence(0), time.Now())
	require.NoError(t, err)
	require.Len(t, quests, 2)
	assert.Equal(t, int64(2), quests[0].BusinessID)
	assert.Equal(t, int64(3), quests[1].BusinessID)

	_, err = Validate(list[:7], testCandidates(), limits, sequence(0), time.Now())
	var verr *errors.QuestValidationError
	require.True(t, stderrors.As(err, &verr))
	assert.Equal(t, 7, verr.Rejected)
}

func TestValidate_SubMinuteWindowRejectsBatch(t *testing.T) {
	batch := []Suggestion{{BusinessID: 1, Type: "visit", Title: "Quick", ExpiresInMinutes: 5}}

	for _, window := range []time.Duration{0, 30 * time.Second, -time.Minute} {
		quests, err := Validate(batch, testCandidates(), Limits{Window: window, MaxPoints: 100}, sequence(0), time.Now())
		assert.Nil(t, quests)
		assert.ErrorIs(t, err, errors.QuestValidationFailed, "window %s", window)
	}

	assert.Empty(t, Fallback(testCandidates(), 3, 30*time.Second, sequence(0), time.Now()))
}

func TestClientSuggest_FailuresAreUpstreamErrors(t *testing.T) {
	c := &Client{}
	_, err := c.Suggest(context.Background(), GenerateRequest{})
	assert.ErrorIs(t, err, errors.QuestUpstreamFailed)
}
