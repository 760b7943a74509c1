package repository

import (
	"context"
	"errors"

	"github.com/foxseedlab/chumon/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateConversation(ctx context.Context, input repository.CreateConversationInput) (*repository.ConversationRecord, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO conversations (name, created_at)
		 VALUES ($1, $2)
		 RETURNING id, name, created_at, archived_at`,
		input.Name, input.CreatedAt)
	var c repository.ConversationRecord
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.ArchivedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) RenameConversation(ctx context.Context, input repository.RenameConversationInput) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE conversations SET name = $2 WHERE id = $1`,
		input.ConversationID, input.Name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ArchiveConversation(ctx context.Context, input repository.ArchiveConversationInput) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE conversations SET archived_at = $2 WHERE id = $1 AND archived_at IS NULL`,
		input.ConversationID, input.ArchivedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetConversation(ctx context.Context, id int64) (*repository.ConversationRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at, archived_at FROM conversations WHERE id = $1`,
		id)
	var c repository.ConversationRecord
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.ArchivedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) AppendMessage(ctx context.Context, input repository.AppendMessageInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (conversation_id, position, sender, text, icon, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		input.ConversationID, input.Position, input.Sender, input.Text, input.Icon, input.CreatedAt)
	return err
}

func (r *PostgresRepository) ListMessages(ctx context.Context, conversationID int64) ([]repository.MessageRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT conversation_id, position, sender, text, icon, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY position ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.MessageRecord
	for rows.Next() {
		var m repository.MessageRecord
		if err := rows.Scan(&m.ConversationID, &m.Position, &m.Sender, &m.Text, &m.Icon, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
