package user

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repository persists user accounts.
type Repository interface {
	// Create inserts a new user.
	Create(u *User) error

	// GetByMobile returns the user for mobile, or (nil, nil) when no such
	// account exists.
	GetByMobile(mobile string) (*User, error)

	// UpdatePassword replaces the stored password hash for mobile.
	UpdatePassword(mobile, passwordHash string) error
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a MySQL-backed user repository.
func NewGormRepository(db *gorm.DB) Repository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(u *User) error {
	if err := r.db.Create(u).Error; err != nil {
		return fmt.Errorf("create user %s: %w", u.Mobile, err)
	}
	return nil
}

func (r *gormUserRepository) GetByMobile(mobile string) (*User, error) {
	var u User
	err := r.db.Where("mobile = ?", mobile).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", mobile, err)
	}
	return &u, nil
}

func (r *gormUserRepository) UpdatePassword(mobile, passwordHash string) error {
	result := r.db.Model(&User{}).Where("mobile = ?", mobile).Update("password", passwordHash)
	if result.Error != nil {
		return fmt.Errorf("update password for %s: %w", mobile, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update password for %s: no such user", mobile)
	}
	return nil
}
