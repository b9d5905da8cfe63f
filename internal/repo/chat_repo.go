// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated. IsDuplicate classifies unique
//     violations across drivers.
//
// Functions:
//
//   - CreateChat(ctx, db, name, kind, directKey) -> *domain.Chat, error
//   - GetChat(ctx, db, id) -> *domain.Chat, error
//   - ChatExists(ctx, db, id) -> bool, error
//   - ListChats / CountChats / ListChatsPage: global listing ordered by id.
//   - FindDirectChatBetween(ctx, db, a, b) -> chat id or 0
//   - UpdateChatName / ClearDirectKey / TouchChat / DeleteChat
//
// Usage:
//
//	err := db.Transaction(func(tx *gorm.DB) error {
//	    chat, err := repo.CreateChat(ctx, tx, "Alice", domain.ChatKindDirect, &key)
//	    ...
//	})
//
// This repository is wrapped by services.ChatService, which enforces the
// membership rules and maps store errors to typed service errors.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
)

// CreateChat inserts a new Chat row. directKey is nil for group chats.
func CreateChat(ctx context.Context, db *gorm.DB, name, kind string, directKey *string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		Name:      name,
		Kind:      kind,
		DirectKey: directKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetChat fetches a single chat by id, or ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ChatExists reports whether a chat with the given id is present.
func ChatExists(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Chat{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// ListChats returns every chat ordered by id ascending.
func ListChats(ctx context.Context, db *gorm.DB) ([]domain.Chat, error) {
	out := []domain.Chat{}
	err := db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// CountChats returns the total number of chats.
func CountChats(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Chat{}).Count(&total).Error
	return total, err
}

// ListChatsPage returns a page of chats ordered by id ascending. The caller
// computes offset and limit (e.g., (page-1)*pageSize).
func ListChatsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Chat, error) {
	out := []domain.Chat{}
	err := db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// FindDirectChatBetween returns the id of a chat whose membership is exactly
// {a, b}, or 0 when there is none.
func FindDirectChatBetween(ctx context.Context, db *gorm.DB, a, b int64) (int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Group("chat_id").
		Having("COUNT(*) = 2 AND SUM(CASE WHEN member_id = ? OR member_id = ? THEN 1 ELSE 0 END) = 2", a, b).
		Order("chat_id ASC").
		Limit(1).
		Pluck("chat_id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}

// UpdateChatName renames a chat. Returns ErrNotFound if no row matched.
func UpdateChatName(ctx context.Context, db *gorm.DB, id int64, name string) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		Updates(map[string]any{"name": name, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearDirectKey releases the pair key of a direct chat.
func ClearDirectKey(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		Update("direct_key", nil).Error
}

// TouchChat bumps updated_at to at.
func TouchChat(ctx context.Context, db *gorm.DB, id int64, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

// DeleteChat removes the chat row only; callers delete messages and
// memberships first within the same transaction.
func DeleteChat(ctx context.Context, db *gorm.DB, id int64) (int64, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Chat{})
	return res.RowsAffected, res.Error
}
