package sshaudit

import (
	"log"
	"time"

	"github.com/falkyre/scoreboard-hub/internal/database"
	"github.com/falkyre/scoreboard-hub/internal/logutil"
	"github.com/falkyre/scoreboard-hub/internal/sshterminal"
	"gorm.io/gorm"
)

// Event types for terminal audit logging.
const (
	EventLoginSuccess = "login_success"
	EventLoginFailed  = "login_failed"
	EventRateLimited  = "rate_limited"
	EventResumed      = "resumed"
	EventDetached     = "detached"
	EventLogout       = "logout"
	EventExpired      = "expired"
	EventShutdown     = "shutdown"
)

// DefaultRetentionDays is the default number of days to keep audit logs.
const DefaultRetentionDays = 90

// tokenPrefixLen is how much of a session token is persisted.
const tokenPrefixLen = 8

// AuditEntry contains the fields needed to create an audit log entry.
type AuditEntry struct {
	EventType    string
	SessionToken string
	Username     string
	SourceIP     string
	Details      string
}

// Auditor records terminal events to the database and the standard logger.
type Auditor struct {
	db            *gorm.DB
	retentionDays int
	nowFn         func() time.Time
}

// NewAuditor creates an Auditor writing to db. If retentionDays is not
// positive, DefaultRetentionDays is used.
func NewAuditor(db *gorm.DB, retentionDays int) *Auditor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Auditor{
		db:            db,
		retentionDays: retentionDays,
		nowFn:         time.Now,
	}
}

// Log records an audit event.
func (a *Auditor) Log(entry AuditEntry) error {
	prefix := entry.SessionToken
	if len(prefix) > tokenPrefixLen {
		prefix = prefix[:tokenPrefixLen]
	}
	record := database.TerminalAuditLog{
		EventType:   entry.EventType,
		TokenPrefix: prefix,
		Username:    entry.Username,
		SourceIP:    entry.SourceIP,
		Details:     entry.Details,
		CreatedAt:   a.nowFn(),
	}

	if err := a.db.Create(&record).Error; err != nil {
		log.Printf("[terminal-audit] failed to write audit log: %v", err)
		return err
	}

	log.Printf("[terminal-audit] %s session=%s user=%s ip=%s details=%s",
		entry.EventType,
		prefix,
		logutil.SanitizeForLog(entry.Username),
		entry.SourceIP,
		logutil.SanitizeForLog(entry.Details),
	)
	return nil
}

// SessionDestroyed is a registry destroy hook recording why a session ended.
func (a *Auditor) SessionDestroyed(info sshterminal.SessionInfo, reason sshterminal.DestroyReason) {
	event := EventLogout
	switch reason {
	case sshterminal.ReasonExpired:
		event = EventExpired
	case sshterminal.ReasonShutdown:
		event = EventShutdown
	}
	a.Log(AuditEntry{
		EventType:    event,
		SessionToken: info.Token,
		Username:     info.Username,
		Details:      "duration=" + a.nowFn().Sub(info.CreatedAt).Round(time.Second).String(),
	})
}

// QueryOptions specifies filters for retrieving audit logs.
type QueryOptions struct {
	EventType string
	Username  string
	Since     *time.Time
	Limit     int
	Offset    int
}

// QueryResult contains audit log entries and pagination metadata.
type QueryResult struct {
	Entries []database.TerminalAuditLog `json:"entries"`
	Total   int64                       `json:"total"`
	Limit   int                         `json:"limit"`
	Offset  int                         `json:"offset"`
}

// Query returns entries matching opts, newest first.
func (a *Auditor) Query(opts QueryOptions) (*QueryResult, error) {
	tx := a.db.Model(&database.TerminalAuditLog{})
	if opts.EventType != "" {
		tx = tx.Where("event_type = ?", opts.EventType)
	}
	if opts.Username != "" {
		tx = tx.Where("username = ?", opts.Username)
	}
	if opts.Since != nil {
		tx = tx.Where("created_at >= ?", *opts.Since)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}

	var entries []database.TerminalAuditLog
	if err := tx.Order("created_at DESC, id DESC").Offset(opts.Offset).Limit(opts.Limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return &QueryResult{
		Entries: entries,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}, nil
}

// PurgeOlderThan removes entries older than days, or the configured
// retention when days is not positive. It returns the number removed.
func (a *Auditor) PurgeOlderThan(days int) (int64, error) {
	if days <= 0 {
		days = a.retentionDays
	}
	cutoff := a.nowFn().AddDate(0, 0, -days)
	result := a.db.Where("created_at < ?", cutoff).Delete(&database.TerminalAuditLog{})
	if result.Error != nil {
		log.Printf("[terminal-audit] purge failed: %v", result.Error)
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("[terminal-audit] purged %d entries older than %d days", result.RowsAffected, days)
	}
	return result.RowsAffected, nil
}

// RetentionDays returns the configured retention period.
func (a *Auditor) RetentionDays() int { return a.retentionDays }

// SetNowFunc replaces the clock; used by tests.
func (a *Auditor) SetNowFunc(fn func() time.Time) { a.nowFn = fn }
