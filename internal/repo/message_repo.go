// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
)

// CreateMessage inserts a new message row stamped with sentAt.
func CreateMessage(ctx context.Context, db *gorm.DB, chatID, memberID int64, body string, sentAt time.Time) (*domain.Message, error) {
	m := &domain.Message{
		ChatID:   chatID,
		MemberID: memberID,
		Body:     body,
		SentAt:   sentAt.UTC(),
	}
	if err := db.WithContext(ctx).Omit("Chat").Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by id scoped to its chat. Returns ErrNotFound
// when it does not exist or belongs to another chat.
func GetMessage(ctx context.Context, db *gorm.DB, chatID, id int64) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ? AND chat_id = ?", id, chatID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (SentAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, chatID int64, offset, limit int) ([]domain.Message, error) {
	out := []domain.Message{}
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("sent_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteMessages removes every message of a chat and returns how many were deleted.
func DeleteMessages(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	res := db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}
