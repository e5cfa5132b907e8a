package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CityClaim/internal/geo"
	"CityClaim/internal/model"
	"CityClaim/internal/model/dto"
	"CityClaim/internal/queue"
	"CityClaim/internal/quest"
)

type stubGenerator struct {
	suggestions []quest.Suggestion
	err         error
	got         quest.GenerateRequest
}

func (g *stubGenerator) Suggest(_ context.Context, req quest.GenerateRequest) ([]quest.Suggestion, error) {
	g.got = req
	return g.suggestions, g.err
}

func newQuestHarness(t *testing.T, gen quest.Generator) (*harness, *QuestService) {
	h := newHarness(t)
	require.NoError(t, h.db.Model(&model.Business{}).Where("id = ?", 1).
		Updates(map[string]interface{}{"min_percent_off": 10, "max_percent_off": 30}).Error)

	next := int64(9000)
	svc := NewQuestService(QuestOptions{
		Repo:          h.repo,
		Generator:     gen,
		MaxPoints:     100,
		FallbackCount: 2,
		RadiusMeters:  1500,
		WindowMinutes: 120,
		Location:      time.UTC,
		NextID: func() int64 {
			next++
			return next
		},
		Now: func() time.Time { return h.now },
	})
	return h, svc
}

func near(p geo.Point) dto.GenerateQuestsRequest {
	return dto.GenerateQuestsRequest{Latitude: p.Lat, Longitude: p.Lng}
}

func TestGenerate_ClampsUpstreamPercentOff(t *testing.T) {
	gen := &stubGenerator{suggestions: []quest.Suggestion{
		{ID: "up-1", BusinessID: 1, Type: "deal", Title: "Big latte deal", SuggestedPoints: 40, SuggestedPercentOff: intPtr(150), ExpiresInMinutes: 600},
		{ID: "up-2", BusinessID: 777, Type: "visit", Title: "Invented place", SuggestedPoints: 10},
	}}
	h, svc := newQuestHarness(t, gen)

	resp, err := svc.Generate(context.Background(), testUser, near(bizOne))
	require.NoError(t, err)

	assert.Equal(t, quest.SourceAI, resp.Source)
	require.Len(t, resp.Quests, 1)
	q := resp.Quests[0]
	assert.Equal(t, int64(1), q.BusinessID)
	assert.Equal(t, intPtr(30), q.PercentOff)
	assert.Equal(t, 40, q.Points)
	assert.True(t, q.ExpiresAt.Equal(h.now.Add(120*time.Minute)))
	assert.NotEqual(t, int64(0), q.ID)

	// 候选集只包含半径内的商户
	ids := map[int64]bool{}
	for _, c := range gen.got.Candidates {
		ids[c.BusinessID] = true
	}
	assert.True(t, ids[1])
	assert.False(t, ids[5])

	var stored []model.Quest
	require.NoError(t, h.db.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, resp.BatchID, stored[0].BatchID)
	assert.Equal(t, testUser, stored[0].UserID)
}

func TestGenerate_FallsBackWhenUpstreamFails(t *testing.T) {
	gen := &stubGenerator{err: stderrors.New("upstream 503")}
	_, svc := newQuestHarness(t, gen)

	resp, err := svc.Generate(context.Background(), testUser, near(bizOne))
	require.NoError(t, err)

	assert.Equal(t, quest.SourceTemplate, resp.Source)
	assert.Len(t, resp.Quests, 2)
	for _, q := range resp.Quests {
		assert.Equal(t, quest.SourceTemplate, q.Source)
	}
}

func TestGenerate_FallsBackWhenEverySuggestionRejected(t *testing.T) {
	gen := &stubGenerator{suggestions: []quest.Suggestion{
		{BusinessID: 404, Type: "visit", Title: "Nope"},
	}}
	_, svc := newQuestHarness(t, gen)

	resp, err := svc.Generate(context.Background(), testUser, near(bizOne))
	require.NoError(t, err)
	assert.Equal(t, quest.SourceTemplate, resp.Source)
	assert.NotEmpty(t, resp.Quests)
}

func TestGenerate_TemplatesAreDeterministic(t *testing.T) {
	_, svc := newQuestHarness(t, nil)
	req := near(bizOne)

	a, err := svc.Generate(context.Background(), testUser, req)
	require.NoError(t, err)
	b, err := svc.Generate(context.Background(), testUser, req)
	require.NoError(t, err)

	require.Len(t, b.Quests, len(a.Quests))
	for i := range a.Quests {
		assert.Equal(t, a.Quests[i].BusinessID, b.Quests[i].BusinessID)
		assert.Equal(t, a.Quests[i].Title, b.Quests[i].Title)
		assert.Equal(t, a.Quests[i].Points, b.Quests[i].Points)
		assert.NotEqual(t, a.Quests[i].ID, b.Quests[i].ID)
	}
	assert.NotEqual(t, a.BatchID, b.BatchID)
}

func TestGenerate_NoCandidates(t *testing.T) {
	_, svc := newQuestHarness(t, nil)

	resp, err := svc.Generate(context.Background(), testUser, dto.GenerateQuestsRequest{Latitude: -33.86, Longitude: 151.2})
	require.NoError(t, err)
	assert.Empty(t, resp.Quests)
}

func TestListQuestsHidesClaimedAndExpired(t *testing.T) {
	h, svc := newQuestHarness(t, nil)
	ctx := context.Background()

	resp, err := svc.Generate(ctx, testUser, near(bizOne))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Quests)

	list, err := svc.List(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, list.Quests, len(resp.Quests))

	// 到访 biz 1 会兑换该商户上的任务
	checkIn := h.mustCheckIn(1, bizOne)
	require.NotNil(t, checkIn.QuestRedemption)

	list, err = svc.List(ctx, testUser)
	require.NoError(t, err)
	for _, q := range list.Quests {
		assert.NotEqual(t, checkIn.QuestRedemption.QuestID, q.ID)
	}

	h.advance(3 * time.Hour)
	list, err = svc.List(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, list.Quests)
}

func TestHandleGenerateMessage(t *testing.T) {
	h, svc := newQuestHarness(t, nil)

	err := svc.HandleGenerateMessage(context.Background(), queue.QuestGenerateMessage{
		MessageID: "m-1",
		UserID:    testUser,
		Latitude:  bizTwo.Lat,
		Longitude: bizTwo.Lng,
	})
	require.NoError(t, err)

	var n int64
	require.NoError(t, h.db.Model(&model.Quest{}).Where("user_id = ?", testUser).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestDeleteExpiredQuestsKeepsClaimed(t *testing.T) {
	h, svc := newQuestHarness(t, nil)
	ctx := context.Background()

	resp, err := svc.Generate(ctx, testUser, near(bizOne))
	require.NoError(t, err)
	require.Len(t, resp.Quests, 2)

	checkIn := h.mustCheckIn(1, bizOne)
	require.NotNil(t, checkIn.QuestRedemption)

	// 还没过期时什么都不删
	n, err := h.repo.DeleteExpiredQuests(ctx, h.now, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.repo.DeleteExpiredQuests(ctx, h.now.Add(3*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left []model.Quest
	require.NoError(t, h.db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, checkIn.QuestRedemption.QuestID, left[0].ID)
}
