package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/reqlog/internal/codec"
	"github.com/roach88/reqlog/internal/ir"
)

// Confirmation describes where an appended action landed.
type Confirmation struct {
	ChannelID string
	Hash      string
	Timestamp int64
	// Inserted is false when the action was already in the channel; the
	// confirmation then reports the original timestamp.
	Inserted bool
}

// ErrChannelRequired is returned by AppendAction for an empty channel id.
var ErrChannelRequired = errors.New("channel id is required")

// AppendAction appends raw action bytes to a channel and indexes the
// channel under topics.
//
// Appends are idempotent on the action's content hash: the same action
// appended twice keeps its first timestamp. Topics are always merged, so a
// repeated append can still add index entries.
//
// The bytes are not validated. Undecodable data is stored under the hash of
// its raw bytes and shows up as a malformed event on replay.
func (s *Store) AppendAction(ctx context.Context, channelID string, data []byte, topics ...string) (Confirmation, error) {
	if channelID == "" {
		return Confirmation{}, ErrChannelRequired
	}
	hash := entryHash(data)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Confirmation{}, fmt.Errorf("append action: begin: %w", err)
	}
	defer tx.Rollback()

	conf := Confirmation{ChannelID: channelID, Hash: hash}
	err = tx.QueryRowContext(ctx, `
		SELECT timestamp FROM transactions
		WHERE channel_id = ? AND hash = ?
	`, channelID, hash).Scan(&conf.Timestamp)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		conf.Timestamp = s.clock.Next()
		conf.Inserted = true
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (channel_id, hash, data, timestamp)
			VALUES (?, ?, ?, ?)
		`, channelID, hash, data, conf.Timestamp); err != nil {
			return Confirmation{}, fmt.Errorf("append action: insert: %w", err)
		}
	case err != nil:
		return Confirmation{}, fmt.Errorf("append action: lookup: %w", err)
	}

	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO topics (topic, channel_id)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, topic, channelID); err != nil {
			return Confirmation{}, fmt.Errorf("append action: topic %q: %w", topic, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Confirmation{}, fmt.Errorf("append action: commit: %w", err)
	}
	return conf, nil
}

// entryHash is the action content hash when data decodes, and the raw hash
// otherwise. It matches the hash the engine keys events by.
func entryHash(data []byte) string {
	action, err := codec.Decode(data)
	if err != nil {
		return ir.RawHash(data)
	}
	hash, err := codec.ContentHash(action)
	if err != nil {
		return ir.RawHash(data)
	}
	return hash
}
