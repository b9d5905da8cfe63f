// Package services – PreviewService
//
// This file implements PreviewService, the read model behind a member's chat
// list: one row per chat holding its most recent message.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
	"github.com/tbourn/go-chat-core/internal/repo"
)

// PreviewService derives the per-member chat preview list.
type PreviewService struct {
	// DB is the GORM handle used for reads.
	DB *gorm.DB
}

// NewPreviewService returns a PreviewService backed by db.
func NewPreviewService(db *gorm.DB) *PreviewService { return &PreviewService{DB: db} }

// GetPreviews returns, for each chat callerID belongs to, the latest message
// (greatest sent_at, then greatest id), ordered by chat id. Chats without
// messages are omitted. A caller with no memberships gets ErrNoChatRooms; a
// caller whose chats are all empty gets an empty list.
func (s *PreviewService) GetPreviews(ctx context.Context, callerID int64) ([]domain.Preview, error) {
	ctx, span := otel.Tracer("services/PreviewService").Start(ctx, "GetPreviews")
	span.SetAttributes(attribute.Int64("member.id", callerID))
	defer span.End()

	var out []domain.Preview
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := repo.ChatIDsForMember(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return ErrNoChatRooms
		}
		out, err = repo.LatestMessagesForMember(ctx, tx, callerID)
		return err
	})
	if err != nil {
		return nil, observe("get_previews", storage("get previews", err))
	}
	span.SetAttributes(attribute.Int("previews", len(out)))
	return out, observe("get_previews", nil)
}
