package repo

import (
	"context"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
)

// membershipBatchSize bounds a single multi-row INSERT.
const membershipBatchSize = 100

// AddMembers inserts one membership per member id in batches. Any existing
// (chat, member) pair fails the whole statement with a primary key violation.
func AddMembers(ctx context.Context, db *gorm.DB, chatID int64, memberIDs []int64, at time.Time) error {
	if len(memberIDs) == 0 {
		return nil
	}
	rows := lo.Map(memberIDs, func(id int64, _ int) domain.ChatMember {
		return domain.ChatMember{ChatID: chatID, MemberID: id, JoinedAt: at}
	})
	return db.WithContext(ctx).Omit("Chat").CreateInBatches(&rows, membershipBatchSize).Error
}

// MembershipExists reports whether memberID belongs to chatID.
func MembershipExists(ctx context.Context, db *gorm.DB, chatID, memberID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("chat_id = ? AND member_id = ?", chatID, memberID).
		Count(&n).Error
	return n > 0, err
}

// RemoveMembership deletes one membership and returns the affected row count.
func RemoveMembership(ctx context.Context, db *gorm.DB, chatID, memberID int64) (int64, error) {
	res := db.WithContext(ctx).
		Where("chat_id = ? AND member_id = ?", chatID, memberID).
		Delete(&domain.ChatMember{})
	return res.RowsAffected, res.Error
}

// DeleteMemberships removes every membership of a chat.
func DeleteMemberships(ctx context.Context, db *gorm.DB, chatID int64) error {
	return db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&domain.ChatMember{}).Error
}

// CountMembers returns the number of members in a chat.
func CountMembers(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.ChatMember{}).Where("chat_id = ?", chatID).Count(&n).Error
	return n, err
}

// ListMemberEmails returns the email of each member of a chat, in join order.
// Memberships whose member row no longer exists are skipped.
func ListMemberEmails(ctx context.Context, db *gorm.DB, chatID int64) ([]string, error) {
	out := []string{}
	err := db.WithContext(ctx).
		Table("chat_members AS cm").
		Joins("JOIN members AS m ON m.id = cm.member_id").
		Where("cm.chat_id = ?", chatID).
		Order("cm.joined_at ASC, cm.member_id ASC").
		Pluck("m.email", &out).Error
	return out, err
}

// ChatIDsForMember returns the ids of chats memberID belongs to, ascending.
func ChatIDsForMember(ctx context.Context, db *gorm.DB, memberID int64) ([]int64, error) {
	out := []int64{}
	err := db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("member_id = ?", memberID).
		Order("chat_id ASC").
		Pluck("chat_id", &out).Error
	return out, err
}
