package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourorg/payment-gateway/internal/content"
)

type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) content.Repository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) OrdersForUser(ctx context.Context, userID string) ([]content.Order, error) {
	var orders []content.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *ContentRepository) ContentByVariant(ctx context.Context, variantID uint) (*content.DigitalContent, error) {
	var dc content.DigitalContent
	err := r.db.WithContext(ctx).Where("variant_id = ?", variantID).First(&dc).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &dc, nil
}

func (r *ContentRepository) URLByToken(ctx context.Context, token string) (*content.DigitalContentURL, error) {
	var url content.DigitalContentURL
	err := r.db.WithContext(ctx).Preload("Content").Where("token = ?", token).First(&url).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &url, nil
}

func (r *ContentRepository) CreateURL(ctx context.Context, url *content.DigitalContentURL) error {
	return r.db.WithContext(ctx).Omit("Content").Create(url).Error
}

// IncrementDownloads applies the limit in the UPDATE itself so concurrent
// downloads cannot overrun it.
func (r *ContentRepository) IncrementDownloads(ctx context.Context, urlID uint, maxDownloads *int) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&content.DigitalContentURL{}).
		Where("id = ?", urlID)
	if maxDownloads != nil {
		q = q.Where("download_num < ?", *maxDownloads)
	}
	res := q.UpdateColumn("download_num", gorm.Expr("download_num + 1"))
	if res.Error != nil {
		return false, fmt.Errorf("content repository: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return content.ErrNotFound
	}
	return fmt.Errorf("content repository: %w", err)
}
