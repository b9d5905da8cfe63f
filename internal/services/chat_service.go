// Package services – ChatService
//
// This file implements the ChatService, which owns the chat and membership
// consistency rules: direct chats are unique per member pair, group chats are
// created with all of their members atomically, and chat deletion removes
// messages and memberships in the same transaction.
//
// Every mutating operation runs inside one GORM transaction. Store-level
// uniqueness (membership primary key, the direct_key unique index) decides
// concurrent races; the loser receives the typed Conflict error.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
	"github.com/tbourn/go-chat-core/internal/repo"
)

// groupPlaceholderName is stored until the chat id is known.
const groupPlaceholderName = "Global Chat "

// ChatRepo defines the chat-row persistence required by ChatService. Every
// method takes the handle to run on so calls join the caller's transaction.
type ChatRepo interface {
	// CreateChat inserts a chat; a non-nil directKey must be unique.
	CreateChat(ctx context.Context, db *gorm.DB, name, kind string, directKey *string) (*domain.Chat, error)

	// GetChat fetches a chat by id, or repo.ErrNotFound.
	GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error)

	// ChatExists reports whether the chat is present.
	ChatExists(ctx context.Context, db *gorm.DB, id int64) (bool, error)

	// ListChats returns every chat ordered by id.
	ListChats(ctx context.Context, db *gorm.DB) ([]domain.Chat, error)

	// CountChats returns the total number of chats for pagination.
	CountChats(ctx context.Context, db *gorm.DB) (int64, error)

	// ListChatsPage returns a page of chats ordered by id.
	ListChatsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Chat, error)

	// FindDirectChatBetween returns a chat whose members are exactly a and b, or 0.
	FindDirectChatBetween(ctx context.Context, db *gorm.DB, a, b int64) (int64, error)

	// UpdateChatName renames a chat.
	UpdateChatName(ctx context.Context, db *gorm.DB, id int64, name string) error

	// ClearDirectKey releases the pair key of a direct chat.
	ClearDirectKey(ctx context.Context, db *gorm.DB, id int64) error

	// DeleteChat removes the chat row.
	DeleteChat(ctx context.Context, db *gorm.DB, id int64) (int64, error)
}

// StoreChats is the ChatRepo backed by the repo package.
type StoreChats struct{}

func (StoreChats) CreateChat(ctx context.Context, db *gorm.DB, name, kind string, directKey *string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, name, kind, directKey)
}
func (StoreChats) GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id)
}
func (StoreChats) ChatExists(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	return repo.ChatExists(ctx, db, id)
}
func (StoreChats) ListChats(ctx context.Context, db *gorm.DB) ([]domain.Chat, error) {
	return repo.ListChats(ctx, db)
}
func (StoreChats) CountChats(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountChats(ctx, db)
}
func (StoreChats) ListChatsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, offset, limit)
}
func (StoreChats) FindDirectChatBetween(ctx context.Context, db *gorm.DB, a, b int64) (int64, error) {
	return repo.FindDirectChatBetween(ctx, db, a, b)
}
func (StoreChats) UpdateChatName(ctx context.Context, db *gorm.DB, id int64, name string) error {
	return repo.UpdateChatName(ctx, db, id, name)
}
func (StoreChats) ClearDirectKey(ctx context.Context, db *gorm.DB, id int64) error {
	return repo.ClearDirectKey(ctx, db, id)
}
func (StoreChats) DeleteChat(ctx context.Context, db *gorm.DB, id int64) (int64, error) {
	return repo.DeleteChat(ctx, db, id)
}

// ChatService provides chat lifecycle and membership operations.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the chat repository used by this service.
	Repo ChatRepo

	// NameMaxLen caps stored chat names by rune length.
	NameMaxLen int
}

// NewChatService constructs a ChatService with default name handling. A nil
// r selects StoreChats.
func NewChatService(db *gorm.DB, r ChatRepo) *ChatService {
	if r == nil {
		r = StoreChats{}
	}
	return &ChatService{DB: db, Repo: r, NameMaxLen: 60}
}

// chatTracer returns the tracer of the current global provider.
func chatTracer() trace.Tracer { return otel.Tracer("services/ChatService") }

// CreateDirectChat opens a two-member chat between callerID and targetID and
// seeds it with an empty message authored by the caller. A blank name
// defaults to the target's username.
func (s *ChatService) CreateDirectChat(ctx context.Context, callerID, targetID int64, name string) (int64, error) {
	ctx, span := chatTracer().Start(ctx, "CreateDirectChat",
		trace.WithAttributes(
			attribute.Int64("member.id", callerID),
			attribute.Int64("target.id", targetID),
		),
	)
	defer span.End()

	var chatID int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := repo.GetMember(ctx, tx, targetID)
		if err != nil {
			return memberErr("get member", err)
		}
		if target.ID == callerID {
			return ErrSelfChat
		}

		existing, err := s.Repo.FindDirectChatBetween(ctx, tx, callerID, targetID)
		if err != nil {
			return err
		}
		if existing != 0 {
			return ErrDuplicateChat
		}

		name = s.cleanName(name)
		if name == "" {
			name = s.clip(target.Username)
		}
		key := domain.DirectKey(callerID, targetID)
		chat, err := s.Repo.CreateChat(ctx, tx, name, domain.ChatKindDirect, &key)
		if err != nil {
			if repo.IsDuplicate(err) {
				return ErrDuplicateChat
			}
			return err
		}

		now := time.Now().UTC()
		if err := repo.AddMembers(ctx, tx, chat.ID, []int64{callerID, targetID}, now); err != nil {
			return err
		}
		if _, err := repo.CreateMessage(ctx, tx, chat.ID, callerID, "", now); err != nil {
			return err
		}
		chatID = chat.ID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, observe("create_direct_chat", storage("create direct chat", err))
	}
	span.SetAttributes(attribute.Int64("chat.id", chatID))
	return chatID, observe("create_direct_chat", nil)
}

// CreateGroupChat creates a chat containing the caller and every member named
// by emails. Duplicate emails collapse; one unknown email aborts the whole
// operation. The chat is named "Global Chat {id}".
func (s *ChatService) CreateGroupChat(ctx context.Context, callerID int64, emails []string) (int64, error) {
	ctx, span := chatTracer().Start(ctx, "CreateGroupChat",
		trace.WithAttributes(
			attribute.Int64("member.id", callerID),
			attribute.Int("emails", len(emails)),
		),
	)
	defer span.End()

	if len(emails) == 0 {
		return 0, observe("create_group_chat", ErrNoMembers)
	}
	for _, e := range emails {
		if !ValidEmail(NormalizeEmail(e)) {
			return 0, observe("create_group_chat", ErrInvalidEmail)
		}
	}

	var chatID int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members, err := resolveEmails(ctx, tx, emails)
		if err != nil {
			return err
		}
		ids := lo.Uniq(append([]int64{callerID}, lo.Map(members, func(m domain.Member, _ int) int64 { return m.ID })...))

		chat, err := s.Repo.CreateChat(ctx, tx, groupPlaceholderName, domain.ChatKindGroup, nil)
		if err != nil {
			return err
		}
		if err := repo.AddMembers(ctx, tx, chat.ID, ids, time.Now().UTC()); err != nil {
			return err
		}
		if err := s.Repo.UpdateChatName(ctx, tx, chat.ID, domain.GroupChatName(chat.ID)); err != nil {
			return err
		}
		chatID = chat.ID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, observe("create_group_chat", storage("create group chat", err))
	}
	span.SetAttributes(attribute.Int64("chat.id", chatID))
	return chatID, observe("create_group_chat", nil)
}

// JoinChat adds memberID to a group chat.
func (s *ChatService) JoinChat(ctx context.Context, chatID, memberID int64) error {
	ctx, span := chatTracer().Start(ctx, "JoinChat",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int64("member.id", memberID),
		),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat, err := s.Repo.GetChat(ctx, tx, chatID)
		if err != nil {
			return chatErr(err)
		}
		if _, err := repo.GetMember(ctx, tx, memberID); err != nil {
			return memberErr("get member", err)
		}
		exists, err := repo.MembershipExists(ctx, tx, chatID, memberID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyMember
		}
		if chat.IsDirect() {
			return ErrDirectChatClosed
		}
		if err := repo.AddMembers(ctx, tx, chatID, []int64{memberID}, time.Now().UTC()); err != nil {
			if repo.IsDuplicate(err) {
				return ErrAlreadyMember
			}
			return err
		}
		return nil
	})
	return observe("join_chat", storage("join chat", err))
}

// LeaveOrRemoveMember deletes one membership. The chat itself is never
// removed, even when its last member leaves. Leaving a direct chat releases
// its pair key so the two members may open a new direct chat later.
func (s *ChatService) LeaveOrRemoveMember(ctx context.Context, chatID, memberID int64) error {
	ctx, span := chatTracer().Start(ctx, "LeaveOrRemoveMember",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int64("member.id", memberID),
		),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat, err := s.Repo.GetChat(ctx, tx, chatID)
		if err != nil {
			return chatErr(err)
		}
		n, err := repo.RemoveMembership(ctx, tx, chatID, memberID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotAMember
		}
		if chat.IsDirect() && chat.DirectKey != nil {
			return s.Repo.ClearDirectKey(ctx, tx, chatID)
		}
		return nil
	})
	return observe("leave_chat", storage("leave chat", err))
}

// DeleteChat removes a chat with all of its messages and memberships.
func (s *ChatService) DeleteChat(ctx context.Context, chatID int64) error {
	ctx, span := chatTracer().Start(ctx, "DeleteChat",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureChat(ctx, s.Repo, tx, chatID); err != nil {
			return err
		}
		if _, err := repo.DeleteMessages(ctx, tx, chatID); err != nil {
			return err
		}
		if err := repo.DeleteMemberships(ctx, tx, chatID); err != nil {
			return err
		}
		_, err := s.Repo.DeleteChat(ctx, tx, chatID)
		return err
	})
	return observe("delete_chat", storage("delete chat", err))
}

// ClearMessages deletes every message of a chat, keeping the chat and its members.
func (s *ChatService) ClearMessages(ctx context.Context, chatID int64) error {
	ctx, span := chatTracer().Start(ctx, "ClearMessages",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureChat(ctx, s.Repo, tx, chatID); err != nil {
			return err
		}
		n, err := repo.DeleteMessages(ctx, tx, chatID)
		span.SetAttributes(attribute.Int64("messages.deleted", n))
		return err
	})
	return observe("clear_messages", storage("clear messages", err))
}

// ListMembers returns the emails of a chat's members.
func (s *ChatService) ListMembers(ctx context.Context, chatID int64) ([]string, error) {
	ctx, span := chatTracer().Start(ctx, "ListMembers",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	if err := ensureChat(ctx, s.Repo, s.DB, chatID); err != nil {
		return nil, observe("list_members", storage("list members", err))
	}
	emails, err := repo.ListMemberEmails(ctx, s.DB, chatID)
	if err != nil {
		return nil, observe("list_members", storage("list members", err))
	}
	return emails, observe("list_members", nil)
}

// ListChats returns every chat ordered by id. The listing is global.
func (s *ChatService) ListChats(ctx context.Context) ([]domain.Chat, error) {
	ctx, span := chatTracer().Start(ctx, "ListChats")
	defer span.End()

	out, err := s.Repo.ListChats(ctx, s.DB)
	if err != nil {
		span.RecordError(err)
		return nil, observe("list_chats", storage("list chats", err))
	}
	span.SetAttributes(attribute.Int("chats", len(out)))
	return out, observe("list_chats", nil)
}

// ChatExists reports whether chatID still names a chat.
func (s *ChatService) ChatExists(ctx context.Context, chatID int64) (bool, error) {
	ctx, span := chatTracer().Start(ctx, "ChatExists",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	found, err := s.Repo.ChatExists(ctx, s.DB, chatID)
	if err != nil {
		return false, storage("chat exists", err)
	}
	return found, nil
}

// ListChatsPage returns a page of chats. It applies defaults for invalid
// page/pageSize and returns the total count.
func (s *ChatService) ListChatsPage(ctx context.Context, page, pageSize int) ([]domain.Chat, int64, error) {
	ctx, span := chatTracer().Start(ctx, "ListChatsPage",
		trace.WithAttributes(
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

	total, err := s.Repo.CountChats(ctx, s.DB)
	if err != nil {
		return nil, 0, observe("list_chats", storage("count chats", err))
	}
	if total == 0 {
		return []domain.Chat{}, 0, observe("list_chats", nil)
	}
	items, err := s.Repo.ListChatsPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, observe("list_chats", storage("list chats", err))
	}
	return items, total, observe("list_chats", nil)
}

// RenameChat changes a chat's display name. Only members may rename.
func (s *ChatService) RenameChat(ctx context.Context, callerID, chatID int64, name string) error {
	ctx, span := chatTracer().Start(ctx, "RenameChat",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int64("member.id", callerID),
		),
	)
	defer span.End()

	name = s.cleanName(name)
	if name == "" {
		return observe("rename_chat", ErrEmptyName)
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureChat(ctx, s.Repo, tx, chatID); err != nil {
			return err
		}
		if err := ensureMember(ctx, tx, chatID, callerID); err != nil {
			return err
		}
		return s.Repo.UpdateChatName(ctx, tx, chatID, name)
	})
	return observe("rename_chat", storage("rename chat", err))
}

// cleanName NFC-normalizes, collapses whitespace, and clips a chat name.
func (s *ChatService) cleanName(name string) string {
	name = norm.NFC.String(name)
	name = whitespaceRE.ReplaceAllString(strings.TrimSpace(name), " ")
	return s.clip(name)
}

// clip truncates a chat name to the configured maximum rune length.
func (s *ChatService) clip(name string) string {
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return string([]rune(name)[:s.NameMaxLen])
	}
	return name
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

func chatErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrChatNotFound
	}
	return err
}

func ensureChat(ctx context.Context, r ChatRepo, db *gorm.DB, chatID int64) error {
	ok, err := r.ChatExists(ctx, db, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrChatNotFound
	}
	return nil
}

func ensureMember(ctx context.Context, db *gorm.DB, chatID, memberID int64) error {
	ok, err := repo.MembershipExists(ctx, db, chatID, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAMember
	}
	return nil
}
