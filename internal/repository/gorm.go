package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agentgate-ai/agentgate/pkg/types"
)

// Database driver names for Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sessionRecord is the relational row for a session. Config and metadata are
// stored as JSON blobs.
type sessionRecord struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"index"`
	AgentID      string
	Status       string `gorm:"index"`
	Title        string
	Config       []byte
	Metadata     []byte
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time `gorm:"index"`
}

func (sessionRecord) TableName() string { return "sessions" }

// messageRecord is the relational row for a message.
type messageRecord struct {
	ID          string `gorm:"primaryKey"`
	SessionID   string `gorm:"index"`
	Role        string
	Content     string
	Attachments []byte
	ToolCalls   []byte
	Metadata    []byte
	CreatedAt   time.Time
}

func (messageRecord) TableName() string { return "messages" }

// GormRepository is a Repository backed by a relational database via gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps an existing gorm handle and migrates the schema.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&sessionRecord{}, &messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// Open connects to the named database driver and returns a repository over it.
func Open(driver, dsn string) (*GormRepository, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", DriverSQLite:
		if dsn == "" {
			dsn = "agentgate.db"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return NewGormRepository(db)
}

// Create persists a new session.
func (r *GormRepository) Create(ctx context.Context, session *types.Session) error {
	record, err := toSessionRecord(session)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// Get returns a session by ID, or ErrNotFound.
func (r *GormRepository) Get(ctx context.Context, id string) (*types.Session, error) {
	var record sessionRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromSessionRecord(&record)
}

// Update persists changes to an existing session.
func (r *GormRepository) Update(ctx context.Context, session *types.Session) error {
	record, err := toSessionRecord(session)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(record).Error
}

// ListByUser returns a user's sessions, newest first.
func (r *GormRepository) ListByUser(ctx context.Context, userID string, status *types.SessionStatus, limit, offset int) ([]*types.Session, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var records []sessionRecord
	if err := q.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	sessions := make([]*types.Session, 0, len(records))
	for i := range records {
		session, err := fromSessionRecord(&records[i])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// CountByUser returns how many sessions a user owns.
func (r *GormRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&sessionRecord{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// AddMessage appends a message to its session's history.
func (r *GormRepository) AddMessage(ctx context.Context, msg *types.Message) error {
	record, err := toMessageRecord(msg)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// GetMessages returns up to limit messages for a session, newest first.
func (r *GormRepository) GetMessages(ctx context.Context, sessionID string, limit int, beforeID string) ([]*types.Message, error) {
	q := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if beforeID != "" {
		q = q.Where("id < ?", beforeID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []messageRecord
	if err := q.Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	messages := make([]*types.Message, 0, len(records))
	for i := range records {
		msg, err := fromMessageRecord(&records[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// CleanupExpired marks sessions past their deadline as ended.
func (r *GormRepository) CleanupExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&sessionRecord{}).
		Where("expires_at < ? AND status <> ?", now, string(types.SessionEnded)).
		Updates(map[string]any{"status": string(types.SessionEnded), "updated_at": now})
	return result.RowsAffected, result.Error
}

func toSessionRecord(session *types.Session) (*sessionRecord, error) {
	config, err := json.Marshal(session.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session config: %w", err)
	}
	var metadata []byte
	if session.Metadata != nil {
		if metadata, err = json.Marshal(session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to marshal session metadata: %w", err)
		}
	}

	return &sessionRecord{
		ID:           session.ID,
		UserID:       session.UserID,
		AgentID:      session.AgentID,
		Status:       string(session.Status),
		Title:        session.Title,
		Config:       config,
		Metadata:     metadata,
		MessageCount: session.MessageCount,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

func fromSessionRecord(record *sessionRecord) (*types.Session, error) {
	session := &types.Session{
		ID:           record.ID,
		UserID:       record.UserID,
		AgentID:      record.AgentID,
		Status:       types.SessionStatus(record.Status),
		Title:        record.Title,
		MessageCount: record.MessageCount,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
		ExpiresAt:    record.ExpiresAt,
	}
	if len(record.Config) > 0 {
		if err := json.Unmarshal(record.Config, &session.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session config: %w", err)
		}
	}
	if len(record.Metadata) > 0 {
		if err := json.Unmarshal(record.Metadata, &session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session metadata: %w", err)
		}
	}
	return session, nil
}

func toMessageRecord(msg *types.Message) (*messageRecord, error) {
	record := &messageRecord{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}

	var err error
	if msg.Attachments != nil {
		if record.Attachments, err = json.Marshal(msg.Attachments); err != nil {
			return nil, fmt.Errorf("failed to marshal attachments: %w", err)
		}
	}
	if msg.ToolCalls != nil {
		if record.ToolCalls, err = json.Marshal(msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to marshal tool calls: %w", err)
		}
	}
	if msg.Metadata != nil {
		if record.Metadata, err = json.Marshal(msg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to marshal message metadata: %w", err)
		}
	}
	return record, nil
}

func fromMessageRecord(record *messageRecord) (*types.Message, error) {
	msg := &types.Message{
		ID:        record.ID,
		SessionID: record.SessionID,
		Role:      types.Role(record.Role),
		Content:   record.Content,
		CreatedAt: record.CreatedAt,
	}
	if len(record.Attachments) > 0 {
		if err := json.Unmarshal(record.Attachments, &msg.Attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
		}
	}
	if len(record.ToolCalls) > 0 {
		if err := json.Unmarshal(record.ToolCalls, &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
		}
	}
	if len(record.Metadata) > 0 {
		if err := json.Unmarshal(record.Metadata, &msg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
		}
	}
	return msg, nil
}
