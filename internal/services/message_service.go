// Package services – MessageService
//
// This file implements MessageService, which owns posting and paging chat
// messages. Only members of a chat may read or write its messages. Posting a
// message bumps the chat's updated_at in the same transaction so listing
// ETags change with new activity.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include chat/member identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
	"github.com/tbourn/go-chat-core/internal/repo"
)

// MessageService coordinates message persistence for chat members.
type MessageService struct {
	DB *gorm.DB

	// MaxBodyRunes caps message length; 0 disables the check.
	MaxBodyRunes int

	// Now is the clock used to stamp messages. Defaults to time.Now.
	Now func() time.Time
}

// NewMessageService constructs a MessageService with the given body limit.
func NewMessageService(db *gorm.DB, maxBodyRunes int) *MessageService {
	return &MessageService{DB: db, MaxBodyRunes: maxBodyRunes}
}

// msgTracer returns the tracer of the current global provider.
func msgTracer() trace.Tracer { return otel.Tracer("services/MessageService") }

// Send validates body, verifies membership, and persists the message.
func (s *MessageService) Send(ctx context.Context, callerID, chatID int64, body string) (*domain.Message, error) {
	ctx, span := msgTracer().Start(ctx, "Send",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int64("member.id", callerID),
		),
	)
	defer span.End()

	body = sanitizeBody(body)
	if body == "" {
		return nil, observe("send_message", ErrEmptyBody)
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return nil, observe("send_message", ErrBodyTooLong)
	}

	var msg *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureChat(ctx, StoreChats{}, tx, chatID); err != nil {
			return err
		}
		if err := ensureMember(ctx, tx, chatID, callerID); err != nil {
			return err
		}
		now := s.now()
		m, err := repo.CreateMessage(ctx, tx, chatID, callerID, body, now)
		if err != nil {
			return err
		}
		msg = m
		return repo.TouchChat(ctx, tx, chatID, now)
	})
	if err != nil {
		span.RecordError(err)
		return nil, observe("send_message", storage("send message", err))
	}
	return msg, observe("send_message", nil)
}

// ListPage returns paginated messages for a chat the caller belongs to,
// ordered by (sent_at, id).
func (s *MessageService) ListPage(ctx context.Context, callerID, chatID int64, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := msgTracer().Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if err := ensureChat(ctx, StoreChats{}, s.DB, chatID); err != nil {
		return nil, 0, observe("list_messages", storage("list messages", err))
	}
	if err := ensureMember(ctx, s.DB, chatID, callerID); err != nil {
		return nil, 0, observe("list_messages", storage("list messages", err))
	}

	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, observe("list_messages", storage("count messages", err))
	}
	if total == 0 {
		return []domain.Message{}, 0, observe("list_messages", nil)
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, pageSize)
	if err != nil {
		return nil, 0, observe("list_messages", storage("list messages", err))
	}
	return items, total, observe("list_messages", nil)
}

// Get returns one message of a chat the caller belongs to.
func (s *MessageService) Get(ctx context.Context, callerID, chatID, messageID int64) (*domain.Message, error) {
	if err := ensureMember(ctx, s.DB, chatID, callerID); err != nil {
		return nil, observe("get_message", storage("get message", err))
	}
	m, err := repo.GetMessage(ctx, s.DB, chatID, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		err = ErrMessageNotFound
	}
	if err != nil {
		return nil, observe("get_message", storage("get message", err))
	}
	return m, observe("get_message", nil)
}

func (s *MessageService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// sanitizeBody trims surrounding whitespace and drops control characters
// other than newline and tab.
func sanitizeBody(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
