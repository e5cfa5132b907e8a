package repository

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"CityClaim/internal/model"
)

// CreateQuests 批量写入已通过校验的任务
func (r *Repository) CreateQuests(ctx context.Context, quests []model.Quest) error {
	if len(quests) == 0 {
		return nil
	}
	return r.conn(ctx).CreateInBatches(quests, 100).Error
}

// ListActiveQuests 用户未过期、未兑换的任务，按过期时间升序
func (r *Repository) ListActiveQuests(ctx context.Context, userID int64, now time.Time) ([]model.Quest, error) {
	var list []model.Quest
	err := r.conn(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Where("id NOT IN (?)", r.conn(ctx).Model(&model.QuestClaim{}).Select("quest_id")).
		Order("expires_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// FindRedeemableQuest 该商户上最早创建的可兑换任务，没有时返回 nil
func (r *Repository) FindRedeemableQuest(ctx context.Context, userID, businessID int64, now time.Time) (*model.Quest, error) {
	var q model.Quest
	err := r.conn(ctx).
		Where("user_id = ? AND business_id = ? AND expires_at > ?", userID, businessID, now).
		Where("id NOT IN (?)", r.conn(ctx).Model(&model.QuestClaim{}).Select("quest_id")).
		Order("id ASC").
		First(&q).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ClaimQuest 写入兑换台账。quest_id 唯一，已被兑换时返回 false
func (r *Repository) ClaimQuest(ctx context.Context, claim *model.QuestClaim) (bool, error) {
	res := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "quest_id"}},
		DoNothing: true,
	}).Create(claim)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteQuestClaimByCheckIn 撤销打卡时释放它兑换的任务
func (r *Repository) DeleteQuestClaimByCheckIn(ctx context.Context, checkInID int64) (int64, error) {
	res := r.conn(ctx).Where("check_in_id = ?", checkInID).Delete(&model.QuestClaim{})
	return res.RowsAffected, res.Error
}

// DeleteExpiredQuests 删除 before 之前过期且从未兑换的任务，单批最多 limit 条
func (r *Repository) DeleteExpiredQuests(ctx context.Context, before time.Time, limit int) (int64, error) {
	db := r.conn(ctx)
	ids := db.Model(&model.Quest{}).
		Select("id").
		Where("expires_at <= ?", before).
		Where("id NOT IN (?)", db.Model(&model.QuestClaim{}).Select("quest_id")).
		Order("id ASC").
		Limit(limit)

	res := db.Where("id IN (?)", ids).Delete(&model.Quest{})
	return res.RowsAffected, res.Error
}
