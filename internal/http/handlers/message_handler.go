// Message HTTP handlers.
//
//   - POST /chats/{id}/messages   (post a message as the caller)
//   - GET  /chats/{id}/messages   (paginated history, ETag support)
//
// Both require the caller to be a member of the chat. Posting honors the
// Idempotency-Key header: a retry with the same key returns the message
// created by the first attempt and sets Idempotency-Replayed: true.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-core/internal/domain"
)

// PostMessageRequest is the JSON payload for sending a message.
type PostMessageRequest struct {
	Body string `json:"body" binding:"required" example:"See you at eight?"`
}

// PostMessageResponse wraps the stored message.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of chat messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message
// @Description Appends a message authored by the caller. Control characters are stripped and surrounding whitespace trimmed.
// @Description Supports idempotency via the Idempotency-Key header (same key → same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    MemberAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       id               path    int     true  "Chat ID"
// @Param       body             body    handlers.PostMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.PostMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found or caller not a member"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	me, found := caller(c)
	if !found {
		return
	}
	chatID, valid := pathID(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()

	if rec, hit := replayed(c); hit {
		prev, err := h.msgs.Get(ctx, me, chatID, rec.ResourceID)
		if err == nil {
			ok(c, http.StatusCreated, PostMessageResponse{Message: prev})
			return
		}
		// The original message is gone (chat cleared); process as new.
		c.Writer.Header().Del("Idempotency-Replayed")
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}
	m, err := h.msgs.Send(ctx, me, chatID, req.Body)
	if err != nil {
		failErr(c, err)
		return
	}
	h.remember(c, me, m.ID, http.StatusCreated)
	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a chat
// @Description Returns messages ordered by timestamp then id. Supports weak ETag via If-None-Match.
// @Tags        Messages
// @Produce     json
// @Security    MemberAuth
//
// @Param       id             path    int     true  "Chat ID"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found or caller not a member"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	me, found := caller(c)
	if !found {
		return
	}
	chatID, valid := pathID(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()
	p := pageOf(c)

	items, total, err := h.msgs.ListPage(ctx, me, chatID, p.Number, p.Size)
	if err != nil {
		failErr(c, err)
		return
	}

	// The ETag is only offered after membership was checked by ListPage so
	// outsiders cannot probe chat activity.
	if h.stats != nil {
		if count, latest, serr := h.stats.MessagesStats(ctx, chatID); serr == nil {
			if weakETag(c, fmt.Sprintf("messages:%d:%d:%d:%d:%d", chatID, count, unix(latest), p.Number, p.Size)) {
				return
			}
		}
	}

	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: paginationOf(p, total)})
}
