package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderrouter/src/database"
	"orderrouter/src/model"
)

// GroupRepository handles persistence of copy-trading groups.
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a new repository instance using the main database.
func NewGroupRepository() *GroupRepository {
	return &GroupRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *GroupRepository) WithDB(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create persists a new group together with its members.
func (r *GroupRepository) Create(ctx context.Context, group *model.Group) error {
	logger.WithFields(map[string]interface{}{
		"repo":    "GroupRepository",
		"op":      "Create",
		"name":    group.Name,
		"source":  group.SourceAccountID,
		"members": len(group.Members),
	}).Debug("Creating new copy group")

	return r.db.WithContext(ctx).Create(group).Error
}

// FindByID loads one group with its members preloaded.
func (r *GroupRepository) FindByID(ctx context.Context, id uint) (*model.Group, error) {
	var group model.Group
	err := r.db.WithContext(ctx).
		Preload("Members").
		First(&group, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// ListByUser returns every group owned by the given user, members preloaded.
func (r *GroupRepository) ListByUser(ctx context.Context, userID uint) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("user_id = ?", userID).
		Order("id").
		Find(&groups).Error
	return groups, err
}

// Delete removes a group and its members.
func (r *GroupRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&model.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Group{}, id).Error
	})
}
