package store

import (
	"context"
	"errors"
	"time"

	"PChat/module/message/model"
	"PChat/tools/errs"
	"PChat/tools/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const msgColumns = `id, sender_id, receiver_id, text, image, created_at`

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Store backed by the messages table.
func NewPostgres(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound.Wrap()
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "scan message")
	}
	return &m, nil
}

func (s *pgStore) CreateMessage(ctx context.Context, sender, receiver, text, image string) (*model.Message, error) {
	m := &model.Message{
		ID:         ids.GenerateString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (`+msgColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.Image, m.CreatedAt)
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("insert message", "err", err)
	}
	return m, nil
}

func (s *pgStore) DeleteMessage(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return errs.ErrPersistence.WrapMsg("delete message", "err", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound.Wrap()
	}
	return nil
}

func (s *pgStore) FindMessage(ctx context.Context, id string) (*model.Message, error) {
	return scanMessage(s.pool.QueryRow(ctx, `SELECT `+msgColumns+` FROM messages WHERE id = $1`, id))
}

func (s *pgStore) FindMessagesBetween(ctx context.Context, a, b string) ([]*model.Message, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+msgColumns+` FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at, id`, a, b)
	if err != nil {
		return nil, errs.WrapMsg(err, "query messages")
	}
	defer rows.Close()
	out := make([]*model.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, errs.Wrap(rows.Err())
}

func (s *pgStore) ChatPartners(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT receiver_id FROM messages WHERE sender_id = $1
		UNION
		SELECT sender_id FROM messages WHERE receiver_id = $1
		ORDER BY 1`, userID)
	if err != nil {
		return nil, errs.WrapMsg(err, "query chat partners")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.WrapMsg(err, "scan chat partner")
		}
		if id != userID {
			out = append(out, id)
		}
	}
	return out, errs.Wrap(rows.Err())
}
