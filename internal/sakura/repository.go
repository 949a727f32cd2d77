package sakura

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var ErrStorage = errors.New("storage error")

// maxPersonaUserID bounds the persona hydration query; real participants
// live above this range.
const maxPersonaUserID = 999

// Repository hydrates the persona pool and persists Message records.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Ping verifies connectivity; used by the check CLI.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadPersonas hydrates the synthetic participant pool. Ordered by id so
// cohort resolution is deterministic for a fixed table state.
func (r *Repository) LoadPersonas(ctx context.Context) ([]Persona, error) {
	q := `SELECT u.id, u.avatar_type, u.display_name,
	             u.gender, u.age, u.personality, u.motivation, u.weaknesses, u.background
	      FROM users u
	      INNER JOIN user_game_status s ON u.id = s.user_id
	      WHERE u.id < $1
	      ORDER BY u.id`
	rows, err := r.db.QueryContext(ctx, q, maxPersonaUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load personas: %v", ErrStorage, err)
	}
	defer rows.Close()

	var out []Persona
	for rows.Next() {
		var p Persona
		if err := rows.Scan(&p.UserID, &p.AvatarType, &p.DisplayName,
			&p.Gender, &p.Age, &p.Personality, &p.Motivation, &p.Weaknesses, &p.Background); err != nil {
			return nil, fmt.Errorf("%w: scan persona: %v", ErrStorage, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load personas: %v", ErrStorage, err)
	}
	return out, nil
}

// InsertMessage appends one durable Message record.
func (r *Repository) InsertMessage(ctx context.Context, rec *MessageRecord) error {
	q := `INSERT INTO messages (to_user_id, from_user_id, avatar_type, message, emotion, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, q,
		rec.ToUserID, rec.FromUserID, rec.AvatarType, rec.Message, rec.Emotion, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert message: %v", ErrStorage, err)
	}
	return nil
}

// ListMessagesByUser reads back received messages, newest first.
func (r *Repository) ListMessagesByUser(ctx context.Context, userID, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT to_user_id, from_user_id, avatar_type, message, emotion, created_at
	      FROM messages
	      WHERE to_user_id = $1
	      ORDER BY created_at DESC
	      LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", ErrStorage, err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.ToUserID, &rec.FromUserID, &rec.AvatarType,
			&rec.Message, &rec.Emotion, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan message: %v", ErrStorage, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", ErrStorage, err)
	}
	return out, nil
}
