package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-chat-core/internal/domain"
)

func TestMemberLookups(t *testing.T) {
	db := newTestDB(t, &domain.Member{})
	ctx := context.Background()

	alice, err := CreateMember(ctx, db, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	if _, err := CreateMember(ctx, db, "alice2", "alice@example.com"); !IsDuplicate(err) {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	got, err := GetMember(ctx, db, alice.ID)
	if err != nil || got.Username != "alice" {
		t.Fatalf("GetMember = (%+v, %v)", got, err)
	}
	got, err = GetMemberByEmail(ctx, db, "alice@example.com")
	if err != nil || got.ID != alice.ID {
		t.Fatalf("GetMemberByEmail = (%+v, %v)", got, err)
	}
	got, err = GetMemberByUsername(ctx, db, "alice")
	if err != nil || got.ID != alice.ID {
		t.Fatalf("GetMemberByUsername = (%+v, %v)", got, err)
	}
	if _, err := GetMemberByUsername(ctx, db, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindMembersByEmails_PartialAndEmpty(t *testing.T) {
	db := newTestDB(t, &domain.Member{})
	ctx := context.Background()

	a, _ := CreateMember(ctx, db, "a", "a@example.com")
	b, _ := CreateMember(ctx, db, "b", "b@example.com")

	out, err := FindMembersByEmails(ctx, db, nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty input: (%v, %v)", out, err)
	}
	out, err = FindMembersByEmails(ctx, db, []string{"b@example.com", "a@example.com", "ghost@example.com"})
	if err != nil {
		t.Fatalf("FindMembersByEmails: %v", err)
	}
	if len(out) != 2 || out[0].ID != a.ID || out[1].ID != b.ID {
		t.Fatalf("unexpected members: %+v", out)
	}
}

func TestContacts_CreateDuplicateAndList(t *testing.T) {
	db := newTestDB(t, &domain.Member{}, &domain.Contact{})
	ctx := context.Background()

	me, _ := CreateMember(ctx, db, "me", "me@example.com")
	zed, _ := CreateMember(ctx, db, "zed", "zed@example.com")
	amy, _ := CreateMember(ctx, db, "amy", "amy@example.com")

	for _, f := range []int64{zed.ID, amy.ID} {
		if err := CreateContact(ctx, db, me.ID, f); err != nil {
			t.Fatalf("CreateContact: %v", err)
		}
	}
	if err := CreateContact(ctx, db, me.ID, zed.ID); !IsDuplicate(err) {
		t.Fatalf("expected duplicate edge, got %v", err)
	}

	ok, err := ContactExists(ctx, db, me.ID, zed.ID)
	if err != nil || !ok {
		t.Fatalf("ContactExists(me, zed) = (%v, %v)", ok, err)
	}
	ok, err = ContactExists(ctx, db, zed.ID, me.ID)
	if err != nil || ok {
		t.Fatalf("edges are directed; reverse should not exist: (%v, %v)", ok, err)
	}

	friends, err := ListFriends(ctx, db, me.ID)
	if err != nil {
		t.Fatalf("ListFriends: %v", err)
	}
	if len(friends) != 2 || friends[0].Username != "amy" || friends[1].Username != "zed" || friends[1].Email != "zed@example.com" {
		t.Fatalf("unexpected friends: %+v", friends)
	}
	friends, err = ListFriends(ctx, db, zed.ID)
	if err != nil || len(friends) != 0 {
		t.Fatalf("zed has no outgoing edges: (%+v, %v)", friends, err)
	}
}
