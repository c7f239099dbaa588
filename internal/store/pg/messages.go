package pg

import (
	"context"

	"roledash.org/internal/messages"
)

func (s *Store) CreateMessage(ctx context.Context, m *messages.Message) error {
	_, err := s.db.ExecContext(ctx, `
		insert into messages (id, sender_id, sender_name, email, message, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.SenderID, m.SenderName, m.Email, m.Body, m.CreatedAt)
	return err
}

func (s *Store) ListMessages(ctx context.Context) ([]*messages.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, sender_id, sender_name, email, message, created_at
		from messages
		order by created_at desc, id desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*messages.Message{}
	for rows.Next() {
		var m messages.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Email, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
