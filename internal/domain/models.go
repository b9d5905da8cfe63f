// Package domain defines the persistence models for members, contacts, chats,
// chat memberships, and messages. These types are mapped with GORM and form
// the core data layer of the chat service.
package domain

import (
	"fmt"
	"time"
)

// Chat kinds.
const (
	ChatKindDirect = "direct"
	ChatKindGroup  = "group"
)

// Member is the identity record owned by the registration component. The
// chat core only reads it (by id, username, or email).
//
// Fields:
//   - ID: autoincrement primary key.
//   - Username / Email: each globally unique.
//   - Verified: set by the external email verification flow.
type Member struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username"   gorm:"type:varchar(64);not null;uniqueIndex:ux_members_username"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_members_email"`
	Verified  bool      `json:"verified"   gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Member.
func (Member) TableName() string { return "members" }

// Contact is a directed friend edge created by MemberA toward MemberB.
// The composite primary key rejects duplicate (MemberA, MemberB) edges.
type Contact struct {
	MemberA   int64     `json:"member_a"   gorm:"column:member_a;primaryKey;autoIncrement:false"`
	MemberB   int64     `json:"member_b"   gorm:"column:member_b;primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }

// Chat is a conversation between two (direct) or more (group) members.
//
// Fields:
//   - ID: autoincrement primary key.
//   - Name: display name; group chats are named from their id.
//   - Kind: "direct" or "group".
//   - DirectKey: "<low id>:<high id>" for direct chats, NULL otherwise. The
//     unique index makes a second direct chat for the same pair fail.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Chat struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null;default:''"`
	Kind      string    `json:"kind"       gorm:"type:varchar(16);not null;default:'group'"`
	DirectKey *string   `json:"-"          gorm:"type:varchar(64);uniqueIndex:ux_chats_direct_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// IsDirect reports whether the chat is a two-member direct chat.
func (c Chat) IsDirect() bool { return c.Kind == ChatKindDirect }

// ChatMember grants a member access to a chat. The composite primary key
// makes (ChatID, MemberID) unique at the store level.
type ChatMember struct {
	ChatID   int64     `json:"chat_id"   gorm:"primaryKey;autoIncrement:false"`
	MemberID int64     `json:"member_id" gorm:"primaryKey;autoIncrement:false;index:idx_chat_members_member"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`

	// Chat is the owning conversation. Memberships are cascade-deleted
	// if their chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMember.
func (ChatMember) TableName() string { return "chat_members" }

// Message is a single post within a chat. SentAt is the message timestamp
// used for ordering and preview selection.
type Message struct {
	ID       int64     `json:"id"        gorm:"primaryKey;autoIncrement"`
	ChatID   int64     `json:"chat_id"   gorm:"not null;index:idx_chat_msgs,priority:1"`
	MemberID int64     `json:"member_id" gorm:"not null;index"`
	Body     string    `json:"body"      gorm:"type:text;not null;default:''"`
	SentAt   time.Time `json:"timestamp" gorm:"not null;index:idx_chat_msgs,priority:2"`

	// Chat is the parent conversation. Messages are cascade-deleted
	// if their chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// DirectKey returns the canonical unordered pair key for two member ids.
func DirectKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// GroupChatName is the deterministic display name of a group chat.
func GroupChatName(id int64) string {
	return fmt.Sprintf("Global Chat %d", id)
}

// Preview is the latest message of a chat as seen by one of its members.
type Preview struct {
	ChatID    int64     `json:"chat_id"`
	ChatName  string    `json:"chat_name"`
	MessageID int64     `json:"message_id"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Friend is the public projection of a member reachable through a contact edge.
type Friend struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}
