package wallet

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormLinkStore struct {
	db *gorm.DB
}

var _ LinkStore = (*GormLinkStore)(nil)

func NewGormLinkStore(db *gorm.DB) (*GormLinkStore, error) {
	if err := db.AutoMigrate(&Link{}); err != nil {
		return nil, err
	}
	return &GormLinkStore{db: db}, nil
}

func (s *GormLinkStore) Upsert(ctx context.Context, link *Link) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "sub"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"wallet_address", "proof_token", "linked_at", "email", "name", "picture",
		}),
	}).Create(link).Error
}

func (s *GormLinkStore) GetByIdentity(ctx context.Context, provider, sub string) (*Link, error) {
	var link Link
	err := s.db.WithContext(ctx).
		Where("provider = ? AND sub = ?", provider, sub).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	} else if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *GormLinkStore) GetByAddress(ctx context.Context, provider, address string) (*Link, error) {
	var link Link
	err := s.db.WithContext(ctx).
		Where("provider = ? AND wallet_address = ?", provider, address).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	} else if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *GormLinkStore) DeleteByIdentity(ctx context.Context, provider, sub string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("provider = ? AND sub = ?", provider, sub).
		Delete(&Link{})
	return res.RowsAffected, res.Error
}

func (s *GormLinkStore) DeleteByAddress(ctx context.Context, address string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("LOWER(wallet_address) = LOWER(?)", address).
		Delete(&Link{})
	return res.RowsAffected, res.Error
}
