package repository

import (
	"context"
	"errors"
	"fmt"

	"cartsync/internal/domain/model"
	repo "cartsync/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartStateGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartStateGormRepository(db *gorm.DB) *CartStateGormRepository {
	return &CartStateGormRepository{db: db}
}

var _ repo.CartStateRepository = (*CartStateGormRepository)(nil)

// ownerのカート写しを取得。無ければ空を返す
func (r *CartStateGormRepository) Load(ctx context.Context, owner string) (model.CartSnapshot, error) {
	snap := model.EmptySnapshot()

	var state model.CartState
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return snap, nil
	}
	if err != nil {
		return model.CartSnapshot{}, err
	}

	var lines []model.CartLine
	if err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("id asc").
		Find(&lines).Error; err != nil {
		return model.CartSnapshot{}, err
	}

	snap.CartID = state.CartID
	snap.AppliedSequence = state.AppliedSequence
	snap.Generation = state.Generation
	for _, l := range lines {
		it, err := l.ToLineItem()
		if err != nil {
			return model.CartSnapshot{}, fmt.Errorf("decode line %s: %w", l.ProductID, err)
		}
		snap.Items[it.ProductID] = it
	}
	return snap, nil
}

// headerと明細をまとめて置き換える
func (r *CartStateGormRepository) Save(ctx context.Context, owner string, snap model.CartSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state := model.CartState{
			Owner:           owner,
			CartID:          snap.CartID,
			AppliedSequence: snap.AppliedSequence,
			Generation:      snap.Generation,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}},
			DoUpdates: clause.AssignmentColumns([]string{"cart_id", "applied_sequence", "generation", "updated_at"}),
		}).Create(&state).Error; err != nil {
			return err
		}

		//明細は全削除してから入れ直す
		if err := tx.Where("owner = ?", owner).Delete(&model.CartLine{}).Error; err != nil {
			return err
		}
		if len(snap.Items) == 0 {
			return nil
		}

		lines := make([]model.CartLine, 0, len(snap.Items))
		for _, id := range snap.ProductIDs() {
			lines = append(lines, model.NewCartLine(owner, snap.Items[id]))
		}
		return tx.Create(&lines).Error
	})
}

// ownerのカート写しを全削除
func (r *CartStateGormRepository) Clear(ctx context.Context, owner string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner = ?", owner).Delete(&model.CartLine{}).Error; err != nil {
			return err
		}
		return tx.Where("owner = ?", owner).Delete(&model.CartState{}).Error
	})
}
