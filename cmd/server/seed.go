package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/repo"
)

// demoMembers stand in for the external registration flow in local runs.
var demoMembers = []struct{ username, email string }{
	{"alice", "alice@example.com"},
	{"bob", "bob@example.com"},
	{"carol", "carol@example.com"},
}

// seedDemo inserts the demo members, skipping ones that already exist.
func seedDemo(ctx context.Context, db *gorm.DB) error {
	for _, m := range demoMembers {
		created, err := repo.CreateMember(ctx, db, m.username, m.email)
		switch {
		case repo.IsDuplicate(err):
			continue
		case err != nil:
			return err
		}
		log.Info().Int64("member_id", created.ID).Str("username", created.Username).Msg("demo member seeded")
	}
	return nil
}
