// Chat HTTP handlers.
//
// This file exposes REST endpoints for chats and their memberships:
//   - POST   /chats                       (create direct chat)
//   - POST   /chats/group                 (create group chat)
//   - GET    /chats                       (list, paginated, ETag support)
//   - GET    /chats/{id}                  (member emails)
//   - PUT    /chats/{id}                  (caller joins)
//   - PUT    /chats/{id}/name             (rename)
//   - DELETE /chats/{id}/members/{email}  (leave or remove a member)
//   - DELETE /chats/{id}                  (delete chat with history)
//   - DELETE /chats/{id}/messages         (clear history)
//
// Handlers are transport-thin: they parse input, call application services,
// and translate results and typed errors into HTTP responses.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-core/internal/domain"
	"github.com/tbourn/go-chat-core/internal/http/middleware"
	"github.com/tbourn/go-chat-core/internal/services"
	"github.com/tbourn/go-chat-core/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService defines chat lifecycle and membership operations.
type ChatService interface {
	CreateDirectChat(ctx context.Context, callerID, targetID int64, name string) (int64, error)
	CreateGroupChat(ctx context.Context, callerID int64, emails []string) (int64, error)
	JoinChat(ctx context.Context, chatID, memberID int64) error
	LeaveOrRemoveMember(ctx context.Context, chatID, memberID int64) error
	DeleteChat(ctx context.Context, chatID int64) error
	ClearMessages(ctx context.Context, chatID int64) error
	ListMembers(ctx context.Context, chatID int64) ([]string, error)
	ListChatsPage(ctx context.Context, page, pageSize int) ([]domain.Chat, int64, error)
	RenameChat(ctx context.Context, callerID, chatID int64, name string) error
	ChatExists(ctx context.Context, chatID int64) (bool, error)
}

// MessageService defines message posting and retrieval.
type MessageService interface {
	Send(ctx context.Context, callerID, chatID int64, body string) (*domain.Message, error)
	Get(ctx context.Context, callerID, chatID, messageID int64) (*domain.Message, error)
	ListPage(ctx context.Context, callerID, chatID int64, page, pageSize int) ([]domain.Message, int64, error)
}

// FriendService defines the contact list operations.
type FriendService interface {
	AddFriend(ctx context.Context, callerID int64, username string) error
	ListFriends(ctx context.Context, callerID int64) ([]domain.Friend, error)
}

// PreviewService returns the latest message of every chat of a member.
type PreviewService interface {
	GetPreviews(ctx context.Context, callerID int64) ([]domain.Preview, error)
}

// MemberDirectory resolves member emails to members.
type MemberDirectory interface {
	ResolveByEmail(ctx context.Context, email string) (*domain.Member, error)
}

// StatsSource supplies the (count, latest timestamp) pairs behind list ETags.
type StatsSource interface {
	ChatsStats(ctx context.Context) (int64, *time.Time, error)
	MessagesStats(ctx context.Context, chatID int64) (int64, *time.Time, error)
}

// ReplayStore records the outcome of an idempotent create so a retry with the
// same Idempotency-Key is answered from the record.
type ReplayStore interface {
	Remember(ctx context.Context, memberID int64, scope, key string, resourceID int64, status int) error
}

//
// Handler wiring
//

// Deps lists the collaborators of Handlers. Stats and Replays are optional.
type Deps struct {
	Chats     ChatService
	Messages  MessageService
	Friends   FriendService
	Previews  PreviewService
	Directory MemberDirectory
	Stats     StatsSource
	Replays   ReplayStore
}

// Handlers groups the HTTP endpoints of the public API.
type Handlers struct {
	chats    ChatService
	msgs     MessageService
	friends  FriendService
	previews PreviewService
	dir      MemberDirectory
	stats    StatsSource
	replays  ReplayStore
}

// New constructs Handlers bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		chats:    d.Chats,
		msgs:     d.Messages,
		friends:  d.Friends,
		previews: d.Previews,
		dir:      d.Directory,
		stats:    d.Stats,
		replays:  d.Replays,
	}
}

//
// DTOs
//

// CreateDirectChatRequest opens a two-member chat with the member owning Email.
type CreateDirectChatRequest struct {
	Email string `json:"email" binding:"required" example:"bob@example.com"`
	// Name is optional; the other member's username is used when empty.
	Name string `json:"name" example:"Weekend plans"`
}

// CreateGroupChatRequest opens a group chat with the caller plus every
// member listed. Duplicates are ignored.
type CreateGroupChatRequest struct {
	Emails []string `json:"emails" example:"bob@example.com,carol@example.com"`
}

// CreateChatResponse carries the id of a newly created chat.
type CreateChatResponse struct {
	ChatID int64 `json:"chat_id" example:"42"`
}

// RenameChatRequest is the JSON payload for renaming a chat.
type RenameChatRequest struct {
	Name string `json:"name" binding:"required" example:"Book club"`
}

// ChatMembersResponse lists member emails in join order.
type ChatMembersResponse struct {
	ChatID  int64    `json:"chat_id" example:"42"`
	Members []string `json:"members"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func paginationOf(p utils.Page, total int64) Pagination {
	return Pagination{
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      total,
		TotalPages: p.TotalPages(total),
		HasNext:    p.HasNext(total),
	}
}

// ListChatsResponse wraps a page of chats and pagination information.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

func pageOf(c *gin.Context) utils.Page {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"), 20, 100)
}

// weakETag sets W/"<v>" and reports whether the request's If-None-Match
// matched it, in which case 304 has been written.
func weakETag(c *gin.Context, v string) bool {
	tag := `W/"` + v + `"`
	c.Header("ETag", tag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == tag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func unix(ts *time.Time) int64 {
	if ts == nil {
		return 0
	}
	return ts.UnixNano()
}

// replayed answers a repeated idempotent create from the stored record.
func replayed(c *gin.Context) (middleware.IdempotencyRecord, bool) {
	rec, found := middleware.Replay(c)
	if found {
		c.Header("Idempotency-Replayed", "true")
	}
	return rec, found
}

// replayChat answers a repeated chat create when the recorded chat still
// exists. A deleted chat is created anew and its record repointed.
func (h *Handlers) replayChat(c *gin.Context) bool {
	rec, hit := replayed(c)
	if !hit {
		return false
	}
	found, err := h.chats.ChatExists(c.Request.Context(), rec.ResourceID)
	if err != nil {
		failErr(c, err)
		return true
	}
	if !found {
		c.Writer.Header().Del("Idempotency-Replayed")
		return false
	}
	ok(c, http.StatusCreated, CreateChatResponse{ChatID: rec.ResourceID})
	return true
}

// remember stores the outcome of a create for later replays. Failures are
// logged and never fail the request that already committed.
func (h *Handlers) remember(c *gin.Context, memberID, resourceID int64, status int) {
	key, found := middleware.GetIdempotencyKey(c)
	if !found || h.replays == nil {
		return
	}
	if err := h.replays.Remember(c.Request.Context(), memberID, middleware.IdempotencyScope(c), key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
	}
}

// resolveEmail maps an email to a member, writing the error response on failure.
func (h *Handlers) resolveEmail(c *gin.Context, raw string) (*domain.Member, bool) {
	email := services.NormalizeEmail(raw)
	if !services.ValidEmail(email) {
		failErr(c, services.ErrInvalidEmail)
		return nil, false
	}
	m, err := h.dir.ResolveByEmail(c.Request.Context(), email)
	if err != nil {
		failErr(c, err)
		return nil, false
	}
	return m, true
}

//
// Handlers
//

// CreateDirectChat godoc
// @ID          createDirectChat
// @Summary     Create a direct chat
// @Description Opens a chat between the caller and the member owning the email and seeds it with an empty message.
// @Description At most one chat may contain exactly the same two members. Supports Idempotency-Key.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    MemberAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateDirectChatRequest  true  "Direct chat payload"
//
// @Success     201  {object}  handlers.CreateChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Member not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Chat already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats [post]
func (h *Handlers) CreateDirectChat(c *gin.Context) {
	me, found := caller(c)
	if !found {
		return
	}
	if h.replayChat(c) {
		return
	}

	var req CreateDirectChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email required")
		return
	}
	target, found := h.resolveEmail(c, req.Email)
	if !found {
		return
	}

	id, err := h.chats.CreateDirectChat(c.Request.Context(), me, target.ID, req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	h.remember(c, me, id, http.StatusCreated)
	ok(c, http.StatusCreated, CreateChatResponse{ChatID: id})
}

// CreateGroupChat godoc
// @ID          createGroupChat
// @Summary     Create a group chat
// @Description Creates a chat holding the caller and every listed member, named "Global Chat {id}".
// @Description Every email must resolve; nothing is created otherwise. Supports Idempotency-Key.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    MemberAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateGroupChatRequest  true  "Group chat payload"
//
// @Success     201  {object}  handlers.CreateChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Member not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats/group [post]
func (h *Handlers) CreateGroupChat(c *gin.Context) {
	me, found := caller(c)
	if !found {
		return
	}
	if h.replayChat(c) {
		return
	}

	var req CreateGroupChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	id, err := h.chats.CreateGroupChat(c.Request.Context(), me, req.Emails)
	if err != nil {
		failErr(c, err)
		return
	}
	h.remember(c, me, id, http.StatusCreated)
	ok(c, http.StatusCreated, CreateChatResponse{ChatID: id})
}

// ListChats godoc
// @ID          listChats
// @Summary     List chats (paginated)
// @Description Returns a page of all chats ordered by id. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chats
// @Produce     json
// @Security    MemberAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListChatsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	p := pageOf(c)

	if h.stats != nil {
		if count, latest, err := h.stats.ChatsStats(ctx); err == nil {
			if weakETag(c, fmt.Sprintf("chats:%d:%d:%d:%d", count, unix(latest), p.Number, p.Size)) {
				return
			}
		}
	}

	items, total, err := h.chats.ListChatsPage(ctx, p.Number, p.Size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: items, Pagination: paginationOf(p, total)})
}

// ListMembers godoc
// @ID          listChatMembers
// @Summary     List chat members
// @Description Returns the emails of every member of the chat in join order.
// @Tags        Chats
// @Produce     json
// @Security    MemberAuth
//
// @Param       id  path  int  true  "Chat ID"
//
// @Success     200  {object} handlers.ChatMembersResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id} [get]
func (h *Handlers) ListMembers(c *gin.Context) {
	chatID, valid := pathID(c, "id")
	if !valid {
		return
	}
	emails, err := h.chats.ListMembers(c.Request.Context(), chatID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChatMembersResponse{ChatID: chatID, Members: emails})
}

// JoinChat godoc
// @ID          joinChat
// @Summary     Join a chat
// @Description Adds the caller to a group chat. Direct chats cannot be joined.
// @Tags        Chats
// @Security    MemberAuth
//
// @Param       id  path  int  true  "Chat ID"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     409  {object} handlers.ErrorResponse "Already a member"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id} [put]
func (h *Handlers) JoinChat(c *gin.Context) {
	me, found := caller(c)
	if !found {
		return
	}
	chatID, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.chats.JoinChat(c.Request.Context(), chatID, me); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// RenameChat godoc
// @ID          renameChat
// @Summary     Rename a chat
// @Description Sets a new chat name. Only members may rename a chat.
// @Tags        Chats
// @Accept      json
// @Security    MemberAuth
//
// @Param       id    path  int                          true  "Chat ID"
// @Param       body  body  handlers.RenameChatRequest  true  "New name"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/name [put]
func (h *Handlers) RenameChat(c *gin.Context) {
	me, found := caller(c)
	if !found {
		return
	}
	chatID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req RenameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}
	if err := h.chats.RenameChat(c.Request.Context(), me, chatID, req.Name); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// RemoveMember godoc
// @ID          removeChatMember
// @Summary     Leave or remove a member
// @Description Removes the member owning the email from the chat. A direct chat stops counting as the pair's chat once a member leaves.
// @Tags        Chats
// @Security    MemberAuth
//
// @Param       id     path  int     true  "Chat ID"
// @Param       email  path  string  true  "Member email"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat, member or membership not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/members/{email} [delete]
func (h *Handlers) RemoveMember(c *gin.Context) {
	chatID, valid := pathID(c, "id")
	if !valid {
		return
	}
	m, found := h.resolveEmail(c, c.Param("email"))
	if !found {
		return
	}
	if err := h.chats.LeaveOrRemoveMember(c.Request.Context(), chatID, m.ID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// DeleteChat godoc
// @ID          deleteChat
// @Summary     Delete a chat
// @Description Deletes the chat together with its memberships and messages.
// @Tags        Chats
// @Security    MemberAuth
//
// @Param       id  path  int  true  "Chat ID"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id} [delete]
func (h *Handlers) DeleteChat(c *gin.Context) {
	chatID, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.chats.DeleteChat(c.Request.Context(), chatID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ClearMessages godoc
// @ID          clearChatMessages
// @Summary     Clear chat history
// @Description Deletes every message of the chat; memberships are kept.
// @Tags        Chats
// @Security    MemberAuth
//
// @Param       id  path  int  true  "Chat ID"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/messages [delete]
func (h *Handlers) ClearMessages(c *gin.Context) {
	chatID, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.chats.ClearMessages(c.Request.Context(), chatID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
