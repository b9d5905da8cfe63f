package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
)

// CreateMember inserts a member row. Registration owns this table in
// production; the function exists for seeding and tests.
func CreateMember(ctx context.Context, db *gorm.DB, username, email string) (*domain.Member, error) {
	m := &domain.Member{
		Username:  username,
		Email:     email,
		Verified:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMember fetches a member by id, or ErrNotFound.
func GetMember(ctx context.Context, db *gorm.DB, id int64) (*domain.Member, error) {
	var m domain.Member
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMemberByEmail fetches a member by (already normalized) email.
func GetMemberByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Member, error) {
	var m domain.Member
	if err := db.WithContext(ctx).Where("LOWER(email) = ?", email).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMemberByUsername fetches a member by exact username.
func GetMemberByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.Member, error) {
	var m domain.Member
	if err := db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindMembersByEmails returns the members whose email is in emails. Missing
// emails are simply absent from the result.
func FindMembersByEmails(ctx context.Context, db *gorm.DB, emails []string) ([]domain.Member, error) {
	var out []domain.Member
	if len(emails) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Where("LOWER(email) IN ?", emails).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
