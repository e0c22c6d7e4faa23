package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/reqlog/internal/ir"
)

// GetActionsForChannel returns every entry of a channel.
// Results are ordered deterministically: ORDER BY timestamp ASC, hash ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) for an unknown channel.
func (s *Store) GetActionsForChannel(ctx context.Context, channelID string) ([]ir.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data, timestamp
		FROM transactions
		WHERE channel_id = ?
		ORDER BY timestamp ASC, hash COLLATE BINARY ASC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query channel %s: %w", channelID, err)
	}
	return scanEntries(rows)
}

// GetActionsForTopic returns the entries addressed by topic: the channel
// named topic plus every channel indexed under it. Ordering matches
// GetActionsForChannel.
func (s *Store) GetActionsForTopic(ctx context.Context, topic string) ([]ir.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data, timestamp
		FROM transactions
		WHERE channel_id = ?
		   OR channel_id IN (SELECT channel_id FROM topics WHERE topic = ?)
		ORDER BY timestamp ASC, hash COLLATE BINARY ASC
	`, topic, topic)
	if err != nil {
		return nil, fmt.Errorf("query topic %s: %w", topic, err)
	}
	return scanEntries(rows)
}

// GetChannelsForTopic returns the channel ids indexed under topic, in
// binary order.
func (s *Store) GetChannelsForTopic(ctx context.Context, topic string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id
		FROM topics
		WHERE topic = ?
		ORDER BY channel_id COLLATE BINARY ASC
	`, topic)
	if err != nil {
		return nil, fmt.Errorf("query topic %s: %w", topic, err)
	}
	return scanStrings(rows)
}

// ListChannels returns every channel id that holds at least one entry.
func (s *Store) ListChannels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT channel_id
		FROM transactions
		ORDER BY channel_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	return scanStrings(rows)
}

func scanEntries(rows *sql.Rows) ([]ir.LogEntry, error) {
	defer rows.Close()

	entries := []ir.LogEntry{}
	for rows.Next() {
		var e ir.LogEntry
		if err := rows.Scan(&e.Data, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}
