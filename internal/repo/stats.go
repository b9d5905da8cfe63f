// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
)

// ChatsStats returns aggregate metadata for the chat listing: the total
// number of chats and the maximum UpdatedAt among them. When there are no
// chats, count is 0 and maxUpdatedAt is nil.
func ChatsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Chat{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Chat{}).
		Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// MessagesStats returns the number of messages in a chat and the newest
// SentAt among them, or (0, nil) for an empty chat.
func MessagesStats(ctx context.Context, db *gorm.DB, chatID int64) (count int64, maxSentAt *time.Time, err error) {
	if err = db.WithContext(ctx).Model(&domain.Message{}).
		Where("chat_id = ?", chatID).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		SentAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Message{}).
		Where("chat_id = ?", chatID).
		Select("sent_at").Order("sent_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.SentAt, nil
}
