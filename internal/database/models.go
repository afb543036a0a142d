package database

import "time"

// TerminalAuditLog is one browser-terminal lifecycle event. Only a prefix of
// the session token is stored so the table cannot be used to resume sessions.
type TerminalAuditLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventType   string    `gorm:"index;not null" json:"event_type"`
	TokenPrefix string    `gorm:"index" json:"token_prefix"`
	Username    string    `json:"username"`
	SourceIP    string    `json:"source_ip"`
	Details     string    `json:"details"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
