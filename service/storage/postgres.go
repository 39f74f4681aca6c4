package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

// Migrate creates the schema when it does not exist yet. Message ids are
// assigned by the gateway (snowflake), not by the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS groups (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL REFERENCES groups(id),
	user_id  TEXT NOT NULL REFERENCES users(id),
	PRIMARY KEY (group_id, user_id)
);
CREATE TABLE IF NOT EXISTS direct_messages (
	id           TEXT PRIMARY KEY,
	content      TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	sender_id    TEXT NOT NULL REFERENCES users(id),
	recipient_id TEXT NOT NULL REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_dm_pair ON direct_messages (sender_id, recipient_id, created_at);
CREATE TABLE IF NOT EXISTS group_messages (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	sender_id  TEXT NOT NULL REFERENCES users(id),
	group_id   TEXT NOT NULL REFERENCES groups(id)
);
CREATE INDEX IF NOT EXISTS idx_gm_group ON group_messages (group_id, created_at);
`
	_, err := s.pool.Exec(ctx, schema)
	return errors.Wrap(err, "migrate schema")
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, display_name, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.DisplayName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	var g Group
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get group")
	}
	return &g, nil
}

func (s *PostgresStore) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "list members")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan member")
		}
		out = append(out, id)
	}
	return out, errors.Wrap(rows.Err(), "list members")
}

func (s *PostgresStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID).Scan(&exists)
	return exists, errors.Wrap(err, "check membership")
}

func (s *PostgresStore) SaveDirect(ctx context.Context, m *DirectMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO direct_messages (id, content, created_at, sender_id, recipient_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Content, m.CreatedAt, m.SenderID, m.RecipientID)
	return errors.Wrap(err, "save direct message")
}

func (s *PostgresStore) SaveGroup(ctx context.Context, m *GroupMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_messages (id, content, created_at, sender_id, group_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Content, m.CreatedAt, m.SenderID, m.GroupID)
	return errors.Wrap(err, "save group message")
}

func (s *PostgresStore) DirectHistory(ctx context.Context, userA, userB string, limit int) ([]DirectMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, created_at, sender_id, recipient_id
		 FROM direct_messages
		 WHERE (sender_id = $1 AND recipient_id = $2)
		    OR (sender_id = $2 AND recipient_id = $1)
		 ORDER BY created_at ASC, id ASC
		 LIMIT $3`, userA, userB, limit)
	if err != nil {
		return nil, errors.Wrap(err, "direct history")
	}
	defer rows.Close()

	var out []DirectMessage
	for rows.Next() {
		var m DirectMessage
		if err := rows.Scan(&m.ID, &m.Content, &m.CreatedAt, &m.SenderID, &m.RecipientID); err != nil {
			return nil, errors.Wrap(err, "scan direct message")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "direct history")
}

func (s *PostgresStore) GroupHistory(ctx context.Context, groupID string, limit int) ([]GroupMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, created_at, sender_id, group_id
		 FROM group_messages
		 WHERE group_id = $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2`, groupID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "group history")
	}
	defer rows.Close()

	var out []GroupMessage
	for rows.Next() {
		var m GroupMessage
		if err := rows.Scan(&m.ID, &m.Content, &m.CreatedAt, &m.SenderID, &m.GroupID); err != nil {
			return nil, errors.Wrap(err, "scan group message")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "group history")
}
