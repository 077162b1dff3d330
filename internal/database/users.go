package database

import (
	"context"
	"errors"

	"field-service/internal/apperrors"
	"field-service/internal/models"

	"gorm.io/gorm"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (u *Users) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, userNotFound(err)
	}
	return &user, nil
}

func (u *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, userNotFound(err)
	}
	return &user, nil
}

// UpdateSignature сохраняет подпись инженера для повторного использования.
func (u *Users) UpdateSignature(ctx context.Context, id, signature string) error {
	res := u.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("signature", signature)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrNotFound, "User not found.")
	}
	return nil
}

func userNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.ErrNotFound, "User not found.", err)
	}
	return err
}
