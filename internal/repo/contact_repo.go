package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
)

// ContactExists reports whether the directed edge a -> b is present.
func ContactExists(ctx context.Context, db *gorm.DB, a, b int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Contact{}).
		Where("member_a = ? AND member_b = ?", a, b).
		Count(&n).Error
	return n > 0, err
}

// CreateContact inserts the directed edge a -> b. A duplicate edge surfaces
// as a primary key violation (see IsDuplicate).
func CreateContact(ctx context.Context, db *gorm.DB, a, b int64) error {
	c := &domain.Contact{MemberA: a, MemberB: b, CreatedAt: time.Now().UTC()}
	return db.WithContext(ctx).Create(c).Error
}

// ListFriends returns the username and email of every member reachable by an
// outgoing edge from memberID, ordered by username.
func ListFriends(ctx context.Context, db *gorm.DB, memberID int64) ([]domain.Friend, error) {
	out := []domain.Friend{}
	err := db.WithContext(ctx).
		Table("contacts AS c").
		Select("m.username AS username, m.email AS email").
		Joins("JOIN members AS m ON m.id = c.member_b").
		Where("c.member_a = ?", memberID).
		Order("m.username ASC").
		Scan(&out).Error
	return out, err
}
