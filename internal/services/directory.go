// Package services – Directory
//
// This file implements the member Directory used to turn emails and
// usernames from requests into member ids. Email shape is checked with
// go-playground/validator before any lookup.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
	"github.com/tbourn/go-chat-core/internal/repo"
)

var validate = validator.New()

// NormalizeEmail trims and lower-cases an address for lookup.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool { return validate.Var(s, "required,email") == nil }

// Directory resolves members by id, email, or username. Registration owns
// the members table; the directory only reads it.
type Directory struct {
	// DB is the GORM handle used for member lookups.
	DB *gorm.DB
}

// NewDirectory returns a Directory backed by db.
func NewDirectory(db *gorm.DB) *Directory { return &Directory{DB: db} }

// Get returns the member with the given id.
func (d *Directory) Get(ctx context.Context, id int64) (*domain.Member, error) {
	m, err := repo.GetMember(ctx, d.DB, id)
	return m, memberErr("get member", err)
}

// ResolveByEmail looks a member up by email, case-insensitively.
func (d *Directory) ResolveByEmail(ctx context.Context, email string) (*domain.Member, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrUnknownMember
	}
	m, err := repo.GetMemberByEmail(ctx, d.DB, email)
	return m, memberErr("resolve email", err)
}

// ResolveByUsername looks a member up by username.
func (d *Directory) ResolveByUsername(ctx context.Context, username string) (*domain.Member, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUnknownMember
	}
	m, err := repo.GetMemberByUsername(ctx, d.DB, username)
	return m, memberErr("resolve username", err)
}

// ResolveEmails resolves every address or none: a single unknown email
// fails the whole call with ErrUnknownMember.
func (d *Directory) ResolveEmails(ctx context.Context, emails []string) ([]domain.Member, error) {
	return resolveEmails(ctx, d.DB, emails)
}

func resolveEmails(ctx context.Context, db *gorm.DB, emails []string) ([]domain.Member, error) {
	want := lo.Uniq(lo.Map(emails, func(e string, _ int) string { return NormalizeEmail(e) }))
	found, err := repo.FindMembersByEmails(ctx, db, want)
	if err != nil {
		return nil, storage("resolve emails", err)
	}
	if len(found) < len(want) {
		return nil, ErrUnknownMember
	}
	return found, nil
}

func memberErr(op string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUnknownMember
	}
	return storage(op, err)
}
