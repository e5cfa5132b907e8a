package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CityClaim/internal/model"
	"CityClaim/internal/queue"
	"CityClaim/pkg/errors"
)

func TestUndo_RevertsZoneCapture(t *testing.T) {
	h := newHarness(t)
	created := h.mustCheckIn(1, north(bizOne, 45))

	resp := h.mustUndo(1)

	assert.Equal(t, created.ID, resp.RemovedCheckInID)
	assert.Equal(t, 45, resp.PointsRemoved)
	assert.True(t, resp.ZoneCaptureRemoved)
	assert.False(t, resp.NeighborhoodCaptureRemoved)

	u := h.user()
	assert.Zero(t, u.Points)
	assert.Zero(t, u.StreakDays)
	assert.Nil(t, u.LastCheckInDate)
	assert.False(t, h.zoneCaptured(1))
	assert.Contains(t, h.events.snapshot(), queue.RoutingCheckInUndone)
}

func TestUndo_NothingToUndo(t *testing.T) {
	h := newHarness(t)

	_, err := h.undo(1)

	var none *errors.NoCheckInToUndoError
	require.True(t, stderrors.As(err, &none))
	assert.Equal(t, int64(1), none.BusinessID)
	assert.ErrorIs(t, err, errors.NoCheckInToUndo)
}

func TestUndo_ThenRedoRestoresSameState(t *testing.T) {
	h := newHarness(t)
	quest := model.Quest{ID: 700, UserID: testUser, BusinessID: 1, Type: "visit", Title: "Visit", Points: 30,
		ExpiresAt: h.now.Add(2 * time.Hour), Source: "template", BatchID: "b", CreatedAt: h.now}
	require.NoError(t, h.db.Create(&quest).Error)

	first := h.mustCheckIn(1, bizOne)
	before := *h.user()

	h.mustUndo(1)
	h.advance(time.Minute)
	second := h.mustCheckIn(1, bizOne)

	assert.Equal(t, first.Points, second.Points)
	assert.Equal(t, first.IsFirstVisit, second.IsFirstVisit)
	assert.Equal(t, first.ZoneCapture, second.ZoneCapture)
	require.NotNil(t, second.QuestRedemption)
	assert.Equal(t, int64(700), second.QuestRedemption.QuestID)

	after := h.user()
	assert.Equal(t, before.Points, after.Points)
	assert.Equal(t, before.StreakDays, after.StreakDays)
	assert.True(t, h.zoneCaptured(1))
}

func TestUndo_ZoneKeptWhileAnotherBusinessRemains(t *testing.T) {
	h := newHarness(t)

	h.mustCheckIn(2, bizTwo)
	h.advance(time.Minute)
	h.mustCheckIn(3, bizThree)
	assert.Equal(t, int64(45+20), h.user().Points)

	// 撤销带占领奖励的那次打卡：区域仍由 biz 3 占领，奖励保留
	resp := h.mustUndo(2)
	assert.False(t, resp.ZoneCaptureRemoved)
	assert.Equal(t, 20, resp.PointsRemoved)
	assert.True(t, h.zoneCaptured(2))
	assert.Equal(t, int64(45), h.user().Points)

	// 最后一个商户撤销后区域失去，占领奖励随之扣除
	resp = h.mustUndo(3)
	assert.True(t, resp.ZoneCaptureRemoved)
	assert.Equal(t, 20+25, resp.PointsRemoved)
	assert.False(t, h.zoneCaptured(2))
	assert.Zero(t, h.user().Points)
}

func TestUndo_NeighborhoodLost(t *testing.T) {
	h := newHarness(t)

	h.mustCheckIn(1, bizOne)
	h.advance(time.Minute)
	h.mustCheckIn(2, bizTwo)
	require.True(t, h.neighborhood("Huangpu").FullyCaptured)

	resp := h.mustUndo(1)

	assert.True(t, resp.ZoneCaptureRemoved)
	assert.True(t, resp.NeighborhoodCaptureRemoved)
	assert.Equal(t, 20+25+50, resp.PointsRemoved)
	assert.Equal(t, int64(45), h.user().Points)

	n := h.neighborhood("Huangpu")
	assert.False(t, n.FullyCaptured)
	assert.Equal(t, 1, n.ZonesCaptured)
	assert.Nil(t, n.CapturedAt)

	// 重新打卡会再次完全占领街区
	h.advance(time.Minute)
	again := h.mustCheckIn(1, bizOne)
	require.NotNil(t, again.NeighborhoodCapture)
	assert.Equal(t, 20+25+50, again.Points.Total)
	assert.Equal(t, int64(140), h.user().Points)
}

func TestUndo_NeighborhoodInvariantHolds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	steps := []func(){
		func() { h.mustCheckIn(1, bizOne) },
		func() { h.mustCheckIn(2, bizTwo) },
		func() { h.mustCheckIn(3, bizThree) },
		func() { h.mustUndo(2) },
		func() { h.mustUndo(3) },
		func() { h.mustCheckIn(3, bizThree) },
		func() { h.mustUndo(1) },
	}
	for _, step := range steps {
		step()
		h.advance(time.Minute)

		captured, err := h.repo.CountCapturedInNeighborhood(ctx, testUser, "Huangpu", 0)
		require.NoError(t, err)
		total, err := h.repo.CountZonesInNeighborhood(ctx, "Huangpu")
		require.NoError(t, err)

		n := h.neighborhood("Huangpu")
		if n == nil {
			continue
		}
		assert.Equal(t, captured >= total && total > 0, n.FullyCaptured)
	}
}

func TestUndo_ReplaysStreak(t *testing.T) {
	h := newHarness(t)

	h.mustCheckIn(1, bizOne)
	day1 := h.now
	h.advance(24 * time.Hour)
	resp := h.mustCheckIn(4, bizFour)
	require.Equal(t, 2, resp.StreakDays)

	h.mustUndo(4)

	u := h.user()
	assert.Equal(t, 1, u.StreakDays)
	require.NotNil(t, u.LastCheckInDate)
	assert.Equal(t, day1.Format("2006-01-02"), u.LastCheckInDate.UTC().Format("2006-01-02"))
	assert.Equal(t, int64(45), u.Points)
}

func TestUndo_OnlyLatestCheckInForBusiness(t *testing.T) {
	h := newHarness(t)

	h.mustCheckIn(5, bizFive)
	h.advance(25 * time.Hour)
	latest := h.mustCheckIn(5, bizFive)

	resp := h.mustUndo(5)
	assert.Equal(t, latest.ID, resp.RemovedCheckInID)
	assert.Equal(t, latest.Points.Total, resp.PointsRemoved)

	var left int64
	require.NoError(t, h.db.Model(&model.CheckIn{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}

func TestUndo_PointsNeverNegative(t *testing.T) {
	h := newHarness(t)
	h.mustCheckIn(1, bizOne)
	require.NoError(t, h.db.Model(&model.User{}).Where("id = ?", testUser).Update("points", 10).Error)

	h.mustUndo(1)
	assert.Zero(t, h.user().Points)
}
