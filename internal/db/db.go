package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"textbook-rag/internal/config"
	"textbook-rag/internal/models"
)

// SourceDocument is the per-answer provenance stored alongside each logged
// interaction.
type SourceDocument struct {
	SourceFile string  `json:"source_file"`
	Score      float32 `json:"score"`
}

// ChatInteraction is one logged (question, answer, sources) triple.
type ChatInteraction struct {
	bun.BaseModel `bun:"table:chat_history,alias:ch"`

	ID              int64            `bun:"id,pk,autoincrement"`
	UserMessage     string           `bun:"user_message,notnull"`
	AIResponse      string           `bun:"ai_response,notnull"`
	Timestamp       time.Time        `bun:"timestamp,nullzero,notnull,default:now()"`
	SourceDocuments []SourceDocument `bun:"source_documents,type:jsonb"`
}

// User is a registered student account. Owned by the auth layer; only the
// storage shape lives here.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string         `bun:"id,pk"`
	Email        string         `bun:"email,notnull,unique"`
	Name         string         `bun:"name,notnull"`
	PasswordHash string         `bun:"password_hash,notnull"`
	Background   map[string]any `bun:"background,type:jsonb"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:now()"`
}

// ConnectDB opens the relational store. The handle pools connections and is
// shared across concurrent requests; callers create it once at startup.
func ConnectDB(cfg *config.DatabaseConfig) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB ensures the chat history and user tables exist.
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*ChatInteraction)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("db: creating chat_history table: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*User)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("db: creating users table: %w", err)
	}
	return nil
}

// Store exposes the persistence paths the pipeline touches: a best-effort
// write of finished interactions and a read of recent turns.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LogInteraction records one finished exchange. The caller treats failures as
// non-fatal; the error is returned only so it can be logged.
func (s *Store) LogInteraction(ctx context.Context, userMessage, answer string, sources []models.ScoredChunk) error {
	docs := make([]SourceDocument, 0, len(sources))
	for _, src := range sources {
		docs = append(docs, SourceDocument{SourceFile: src.SourceFile, Score: src.Score})
	}
	rec := &ChatInteraction{
		UserMessage:     userMessage,
		AIResponse:      answer,
		SourceDocuments: docs,
	}
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("db: logging interaction: %w", err)
	}
	return nil
}

// RecentHistory returns the last limit exchanges as conversation turns in
// chronological order, oldest first.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]models.ConversationTurn, error) {
	var recs []ChatInteraction
	err := s.db.NewSelect().
		Model(&recs).
		Order("timestamp DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("db: loading chat history: %w", err)
	}

	turns := make([]models.ConversationTurn, 0, len(recs)*2)
	for i := len(recs) - 1; i >= 0; i-- {
		turns = append(turns,
			models.ConversationTurn{Role: models.RoleUser, Content: recs[i].UserMessage},
			models.ConversationTurn{Role: models.RoleAssistant, Content: recs[i].AIResponse},
		)
	}
	return turns, nil
}

// CreateUser inserts a user, silently keeping the existing row when the email
// is already registered.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	_, err := s.db.NewInsert().
		Model(user).
		On("CONFLICT (email) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("db: creating user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	user := new(User)
	err := s.db.NewSelect().Model(user).Where("email = ?", email).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("db: loading user by email: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	user := new(User)
	err := s.db.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("db: loading user by id: %w", err)
	}
	return user, nil
}
