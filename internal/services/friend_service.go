// Package services – FriendService
//
// This file implements FriendService, which keeps each member's contact list.
// Edges are directed and unique per (member, friend) pair; the contacts
// primary key settles concurrent adds so exactly one caller succeeds.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
	"github.com/tbourn/go-chat-core/internal/repo"
)

// FriendService manages directed friend edges ("contacts"). Adding a friend
// creates only the caller -> target edge; the target does not see the
// caller in their own list until they add them back.
type FriendService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewFriendService returns a FriendService backed by db.
func NewFriendService(db *gorm.DB) *FriendService { return &FriendService{DB: db} }

// friendTracer returns the tracer of the current global provider.
func friendTracer() trace.Tracer { return otel.Tracer("services/FriendService") }

// AddFriend creates the edge callerID -> member named username.
func (s *FriendService) AddFriend(ctx context.Context, callerID int64, username string) error {
	ctx, span := friendTracer().Start(ctx, "AddFriend")
	span.SetAttributes(attribute.Int64("member.id", callerID))
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" {
		return observe("add_friend", ErrUnknownMember)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := repo.GetMemberByUsername(ctx, tx, username)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrUnknownMember
			}
			return err
		}
		if target.ID == callerID {
			return ErrSelfFriend
		}
		exists, err := repo.ContactExists(ctx, tx, callerID, target.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyFriends
		}
		if err := repo.CreateContact(ctx, tx, callerID, target.ID); err != nil {
			if repo.IsDuplicate(err) {
				return ErrAlreadyFriends
			}
			return err
		}
		return nil
	})
	return observe("add_friend", storage("add friend", err))
}

// ListFriends returns the members callerID has added, ordered by username.
func (s *FriendService) ListFriends(ctx context.Context, callerID int64) ([]domain.Friend, error) {
	ctx, span := friendTracer().Start(ctx, "ListFriends")
	span.SetAttributes(attribute.Int64("member.id", callerID))
	defer span.End()

	out, err := repo.ListFriends(ctx, s.DB, callerID)
	if err != nil {
		span.RecordError(err)
		return nil, observe("list_friends", storage("list friends", err))
	}
	span.SetAttributes(attribute.Int("friends", len(out)))
	return out, observe("list_friends", nil)
}
