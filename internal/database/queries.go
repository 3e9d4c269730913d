package database

import (
	"fmt"
	"time"
)

func (db *PgMessagingRepository) UpsertUser(params UpsertUserParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (id, display_name, avatar_url, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) "+
			"ON CONFLICT (id) DO UPDATE SET display_name = $2, avatar_url = $3, updated_at = $4 "+
			"RETURNING id, display_name, avatar_url, created_at, updated_at",
		params.Id,
		params.DisplayName,
		params.AvatarUrl,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.DisplayName,
		&u.AvatarUrl,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgMessagingRepository) GetUserById(id string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, display_name, avatar_url, created_at, updated_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.DisplayName,
		&user.AvatarUrl,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgMessagingRepository) ListUsers() ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, display_name, avatar_url, created_at, updated_at FROM users ORDER BY display_name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.DisplayName, &u.AvatarUrl, &u.CreatedAt, &u.UpdatedAt); err != nil {
			break
		}

		users = append(users, u)
	}

	return users, err
}

func (db *PgMessagingRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (sender_id, recipient_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, sender_id, recipient_id, content, created_at",
		params.SenderId,
		params.RecipientId,
		params.Content,
		params.CreatedAt,
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.RecipientId,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

// GetConversation returns messages between the unordered pair
// {userA, userB}, newest first. When before.Id is non-zero only rows
// strictly older than the keyset position (created_at, id) are
// returned, which makes repeated calls with the same cursor stable.
// The LEAST/GREATEST predicate matches messages_conversation_idx.
func (db *PgMessagingRepository) GetConversation(userA, userB string, before ConversationCursor, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}

	query := "SELECT id, sender_id, recipient_id, content, created_at FROM messages " +
		"WHERE LEAST(sender_id, recipient_id) = LEAST($1, $2) " +
		"AND GREATEST(sender_id, recipient_id) = GREATEST($1, $2)"
	args := []any{userA, userB}

	if before.Id > 0 {
		query += " AND (created_at, id) < ($3, $4)"
		args = append(args, before.CreatedAt, before.Id)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.SenderId, &msg.RecipientId, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

// ListRecentConversations returns the newest message per peer for the
// given user, most recent conversation first.
func (db *PgMessagingRepository) ListRecentConversations(userId string, limit int) ([]ConversationSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT t.peer_id, u.display_name, u.avatar_url,
				t.id, t.sender_id, t.recipient_id, t.content, t.created_at
		FROM (
			SELECT DISTINCT ON (CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END)
					CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS peer_id,
					id, sender_id, recipient_id, content, created_at
			FROM messages
			WHERE sender_id = $1 OR recipient_id = $1
			ORDER BY CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END, created_at DESC, id DESC
		) t
		JOIN users u ON u.id = t.peer_id
		ORDER BY t.created_at DESC
		LIMIT $2
`

	rows, err := db.conn.Query(query, userId, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent conversations: %w", err)
	}
	defer rows.Close()

	var summaries = make([]ConversationSummary, 0, limit)
	for rows.Next() {
		var s ConversationSummary
		err := rows.Scan(
			&s.PeerId,
			&s.PeerDisplayName,
			&s.PeerAvatarUrl,
			&s.LastMessage.Id,
			&s.LastMessage.SenderId,
			&s.LastMessage.RecipientId,
			&s.LastMessage.Content,
			&s.LastMessage.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return summaries, nil
}
