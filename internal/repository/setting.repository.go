package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSettingNotFound = errors.New("setting not found")

type SiteSettingEntity struct {
	Key         string    `gorm:"primaryKey;column:key"`
	Value       string    `gorm:"column:value;not null"`
	Description string    `gorm:"column:description"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SiteSettingEntity) TableName() string {
	return "site_settings"
}

func toSettingModel(e *SiteSettingEntity) *model.SiteSetting {
	return &model.SiteSetting{
		Key:         e.Key,
		Value:       e.Value,
		Description: e.Description,
		UpdatedAt:   e.UpdatedAt,
	}
}

type SettingRepository struct {
	*pg.DB
}

func NewSettingRepository(db *pg.DB) *SettingRepository {
	return &SettingRepository{
		db,
	}
}

func (r *SettingRepository) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	var entity SiteSettingEntity
	if err := r.Read(ctx).Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return toSettingModel(&entity), nil
}

// Upsert writes the value, replacing any existing row for the key.
func (r *SettingRepository) Upsert(ctx context.Context, s model.SiteSetting) (*model.SiteSetting, error) {
	entity := &SiteSettingEntity{Key: s.Key, Value: s.Value, Description: s.Description, UpdatedAt: time.Now().UTC()}
	err := r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(entity).Error
	if err != nil {
		return nil, err
	}
	return toSettingModel(entity), nil
}

func (r *SettingRepository) List(ctx context.Context) ([]*model.SiteSetting, error) {
	var entities []*SiteSettingEntity
	if err := r.Read(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]*model.SiteSetting, len(entities))
	for i, e := range entities {
		out[i] = toSettingModel(e)
	}
	return out, nil
}
