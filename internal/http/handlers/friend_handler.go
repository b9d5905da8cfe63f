// Friend and preview HTTP handlers.
//
//   - POST /friends    (add a contact by username)
//   - GET  /friends    (list contacts)
//   - GET  /previews   (latest message of every chat of the caller)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-core/internal/domain"
)

// AddFriendRequest names the member to add as a contact.
type AddFriendRequest struct {
	Username string `json:"username" binding:"required" example:"bob"`
}

// FriendsResponse lists the caller's contacts ordered by username.
type FriendsResponse struct {
	Friends []domain.Friend `json:"friends"`
}

// PreviewsResponse lists one preview per chat ordered by chat id.
type PreviewsResponse struct {
	Previews []domain.Preview `json:"previews"`
}

// AddFriend godoc
// @ID          addFriend
// @Summary     Add a friend
// @Description Records a contact from the caller to the member with the given username.
// @Tags        Friends
// @Accept      json
// @Security    MemberAuth
//
// @Param       body  body  handlers.AddFriendRequest  true  "Friend payload"
//
// @Success     201  {string} string "Created"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Member not found"
// @Failure     409  {object} handlers.ErrorResponse "Already friends"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /friends [post]
func (h *Handlers) AddFriend(c *gin.Context) {
	me, found := caller(c)
	if !found {
		return
	}
	var req AddFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username required")
		return
	}
	if err := h.friends.AddFriend(c.Request.Context(), me, req.Username); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// ListFriends godoc
// @ID          listFriends
// @Summary     List friends
// @Tags        Friends
// @Produce     json
// @Security    MemberAuth
//
// @Success     200  {object} handlers.FriendsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /friends [get]
func (h *Handlers) ListFriends(c *gin.Context) {
	me, found := caller(c)
	if !found {
		return
	}
	friends, err := h.friends.ListFriends(c.Request.Context(), me)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, FriendsResponse{Friends: friends})
}

// GetPreviews godoc
// @ID          getPreviews
// @Summary     Chat previews
// @Description Returns the latest message of every chat the caller belongs to, ordered by chat id.
// @Description Chats without messages are omitted. 404 when the caller belongs to no chat.
// @Tags        Previews
// @Produce     json
// @Security    MemberAuth
//
// @Success     200  {object} handlers.PreviewsResponse
// @Failure     404  {object} handlers.ErrorResponse "No chat room found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /previews [get]
func (h *Handlers) GetPreviews(c *gin.Context) {
	me, found := caller(c)
	if !found {
		return
	}
	previews, err := h.previews.GetPreviews(c.Request.Context(), me)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PreviewsResponse{Previews: previews})
}
