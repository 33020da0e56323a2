package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ordex/internal/store/model"
)

type tradeRepo struct {
	db *gorm.DB
}

func (r *tradeRepo) Save(ctx context.Context, trade *model.TradeResultModel) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		UpdateAll: true,
	}).Create(trade).Error
}

func (r *tradeRepo) FindByTradeID(ctx context.Context, tradeID string) (*model.TradeResultModel, error) {
	var out model.TradeResultModel
	err := r.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *tradeRepo) ListRecent(ctx context.Context, limit int) ([]model.TradeResultModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.TradeResultModel
	err := r.db.WithContext(ctx).Order("executed_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) SaveConditional(ctx context.Context, order *model.ConditionalOrderModel) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		UpdateAll: true,
	}).Create(order).Error
}

func (r *orderRepo) SaveLimit(ctx context.Context, order *model.LimitOrderModel) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		UpdateAll: true,
	}).Create(order).Error
}

func (r *orderRepo) ListConditional(ctx context.Context, limit int) ([]model.ConditionalOrderModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.ConditionalOrderModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *orderRepo) ListLimit(ctx context.Context, limit int) ([]model.LimitOrderModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.LimitOrderModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}
