package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
)

// latestPerChatSQL selects, for every chat the member belongs to, the message
// with the greatest sent_at (ties broken by the greatest id). A correlated
// ORDER BY ... LIMIT 1 is used instead of MAX(sent_at) because SQLite
// returns MAX() over DATETIME columns as TEXT.
const latestPerChatSQL = `
SELECT c.id AS chat_id, c.name AS chat_name, m.id AS message_id, m.body AS body, m.sent_at AS sent_at
FROM chat_members cm
JOIN chats c ON c.id = cm.chat_id
JOIN messages m ON m.chat_id = cm.chat_id
WHERE cm.member_id = ?
  AND m.id = (
    SELECT m2.id FROM messages m2
    WHERE m2.chat_id = cm.chat_id
    ORDER BY m2.sent_at DESC, m2.id DESC
    LIMIT 1
  )
ORDER BY c.id ASC`

type previewRow struct {
	ChatID    int64
	ChatName  string
	MessageID int64
	Body      string
	SentAt    time.Time
}

// LatestMessagesForMember returns one preview per chat of memberID that has
// at least one message, ordered by chat id ascending.
func LatestMessagesForMember(ctx context.Context, db *gorm.DB, memberID int64) ([]domain.Preview, error) {
	var rows []previewRow
	if err := db.WithContext(ctx).Raw(latestPerChatSQL, memberID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Preview, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Preview{
			ChatID:    r.ChatID,
			ChatName:  r.ChatName,
			MessageID: r.MessageID,
			Body:      r.Body,
			Timestamp: r.SentAt,
		})
	}
	return out, nil
}
