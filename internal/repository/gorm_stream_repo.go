package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
	"github.com/kerylaw/PIYAKAST-sub000/pkg/log"
)

// GormStreamRepository implements StreamRepository using GORM.
type GormStreamRepository struct {
	db *gorm.DB
}

// NewGormStreamRepository creates a new GORM-based stream repository.
func NewGormStreamRepository(db *gorm.DB) *GormStreamRepository {
	return &GormStreamRepository{db: db}
}

// Migrate creates the streams table if it does not exist.
func (r *GormStreamRepository) Migrate() error {
	return r.db.AutoMigrate(&domain.StreamModel{})
}

func (r *GormStreamRepository) GetByID(ctx context.Context, id string) (*domain.Stream, error) {
	var model domain.StreamModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrStreamNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldStreamID, id).Msg("failed to get stream by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (r *GormStreamRepository) GetLiveStreams(ctx context.Context) ([]domain.Stream, error) {
	var models []domain.StreamModel
	result := r.db.WithContext(ctx).
		Where("is_live = ?", true).
		Order("started_at DESC").
		Find(&models)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Msg("failed to list live streams")
		return nil, result.Error
	}

	streams := make([]domain.Stream, len(models))
	for i, model := range models {
		streams[i] = *model.ToDomain()
	}
	return streams, nil
}

func (r *GormStreamRepository) SetStreamLive(ctx context.Context, id, ownerID string) (*domain.Stream, error) {
	l := log.Ctx(ctx)
	now := time.Now().UTC()

	var model domain.StreamModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.First(&model, "id = ?", id)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			model = domain.StreamModel{ID: id, OwnerID: ownerID}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}

		return tx.Model(&model).Updates(map[string]interface{}{
			"is_live":    true,
			"started_at": now,
			"ended_at":   nil,
		}).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, id).Msg("failed to set stream live")
		return nil, err
	}

	model.IsLive = true
	model.StartedAt = &now
	model.EndedAt = nil
	l.Debug().Str(log.FieldStreamID, id).Msg("stream marked live")
	return model.ToDomain(), nil
}

func (r *GormStreamRepository) UpdateStreamStatus(ctx context.Context, id string, isLive bool, viewerCount int) error {
	updates := map[string]interface{}{
		"is_live":      isLive,
		"viewer_count": viewerCount,
	}
	if !isLive {
		updates["ended_at"] = time.Now().UTC()
	}

	result := r.db.WithContext(ctx).
		Model(&domain.StreamModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldStreamID, id).Msg("failed to update stream status")
		return result.Error
	}
	return nil
}
