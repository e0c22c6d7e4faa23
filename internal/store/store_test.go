package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// signedAccept returns the wire bytes of an accept for a made-up request.
func signedAccept(t *testing.T, requestID string) []byte {
	t.Helper()
	action := testutil.Sign(t, testutil.Payee(t), ir.ActionAccept, testutil.RefParams(requestID))
	return testutil.Encode(t, action)
}

func timestamps(entries []ir.LogEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Timestamp
	}
	return out
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if got := s.LastTimestamp(); got != 0 {
		t.Errorf("LastTimestamp() = %d, want 0", got)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	if err == nil {
		t.Fatal("Open() should fail for a path in a missing directory")
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	s := createTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("first Close() failed: %v", err)
	}
	// database/sql tolerates a second close.
	_ = s.Close()

	var empty Store
	if err := empty.Close(); err != nil {
		t.Errorf("Close() on zero Store = %v, want nil", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"user_version": "1",
	} {
		if err := s.verifyPragma(ctx, name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	for _, table := range []string{"transactions", "topics"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	var index string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_topics_channel'",
	).Scan(&index)
	if err != nil {
		t.Errorf("migration index not found: %v", err)
	}
}

func TestAppendAction_AssignsIncreasingTimestamps(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c1, err := s.AppendAction(ctx, "chan-a", []byte(`first`))
	if err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}
	c2, err := s.AppendAction(ctx, "chan-a", []byte(`second`))
	if err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}

	if !c1.Inserted || !c2.Inserted {
		t.Fatalf("both appends should insert: %+v %+v", c1, c2)
	}
	if c1.Timestamp != 1 || c2.Timestamp != 2 {
		t.Errorf("timestamps = %d, %d, want 1, 2", c1.Timestamp, c2.Timestamp)
	}
	if c1.Hash != ir.RawHash([]byte(`first`)) {
		t.Errorf("undecodable data should be keyed by its raw hash, got %s", c1.Hash)
	}
}

func TestAppendAction_IdempotentOnContentHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	data := signedAccept(t, testutil.RequestID(t, testutil.Sign(t, testutil.Payee(t), ir.ActionCreate,
		testutil.CreateParams(testutil.Payee(t).Identity(), testutil.Payer(t).Identity(), "BTC", "1"))))

	first, err := s.AppendAction(ctx, "chan-a", data)
	if err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}
	if _, err := s.AppendAction(ctx, "chan-a", []byte(`other`)); err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}
	again, err := s.AppendAction(ctx, "chan-a", data, "late-topic")
	if err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}

	if again.Inserted {
		t.Error("second append of the same action should not insert")
	}
	if again.Timestamp != first.Timestamp || again.Hash != first.Hash {
		t.Errorf("repeat confirmation = %+v, want timestamp/hash of %+v", again, first)
	}

	entries, err := s.GetActionsForChannel(ctx, "chan-a")
	if err != nil {
		t.Fatalf("GetActionsForChannel() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	channels, err := s.GetChannelsForTopic(ctx, "late-topic")
	if err != nil {
		t.Fatalf("GetChannelsForTopic() failed: %v", err)
	}
	if !reflect.DeepEqual(channels, []string{"chan-a"}) {
		t.Errorf("repeat append should still index topics, got %v", channels)
	}
}

func TestAppendAction_RequiresChannel(t *testing.T) {
	s := createTestStore(t)
	_, err := s.AppendAction(context.Background(), "", []byte(`x`))
	if err != ErrChannelRequired {
		t.Errorf("AppendAction(\"\") = %v, want ErrChannelRequired", err)
	}
}

func TestGetActionsForChannel_OrderAndIsolation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, step := range []struct{ channel, data string }{
		{"chan-a", "a1"},
		{"chan-b", "b1"},
		{"chan-a", "a2"},
	} {
		if _, err := s.AppendAction(ctx, step.channel, []byte(step.data)); err != nil {
			t.Fatalf("AppendAction() failed: %v", err)
		}
	}

	entries, err := s.GetActionsForChannel(ctx, "chan-a")
	if err != nil {
		t.Fatalf("GetActionsForChannel() failed: %v", err)
	}
	if got := timestamps(entries); !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Errorf("timestamps = %v, want [1 3]", got)
	}
	if string(entries[0].Data) != "a1" || string(entries[1].Data) != "a2" {
		t.Errorf("data = %q, %q", entries[0].Data, entries[1].Data)
	}

	empty, err := s.GetActionsForChannel(ctx, "nope")
	if err != nil {
		t.Fatalf("GetActionsForChannel() failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown channel should return an empty slice, got %#v", empty)
	}
}

func TestTopics(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustAppend := func(channel, data string, topics ...string) {
		t.Helper()
		if _, err := s.AppendAction(ctx, channel, []byte(data), topics...); err != nil {
			t.Fatalf("AppendAction() failed: %v", err)
		}
	}
	mustAppend("chan-b", "b1", "payee-x", "")
	mustAppend("chan-a", "a1", "payee-x", "payer-y")
	mustAppend("chan-c", "c1", "payer-y")

	channels, err := s.GetChannelsForTopic(ctx, "payee-x")
	if err != nil {
		t.Fatalf("GetChannelsForTopic() failed: %v", err)
	}
	if !reflect.DeepEqual(channels, []string{"chan-a", "chan-b"}) {
		t.Errorf("channels = %v", channels)
	}

	entries, err := s.GetActionsForTopic(ctx, "payer-y")
	if err != nil {
		t.Fatalf("GetActionsForTopic() failed: %v", err)
	}
	if got := timestamps(entries); !reflect.DeepEqual(got, []int64{2, 3}) {
		t.Errorf("topic timestamps = %v, want [2 3]", got)
	}

	// A channel id is its own topic.
	entries, err = s.GetActionsForTopic(ctx, "chan-c")
	if err != nil {
		t.Fatalf("GetActionsForTopic() failed: %v", err)
	}
	if len(entries) != 1 || string(entries[0].Data) != "c1" {
		t.Errorf("channel-as-topic entries = %v", entries)
	}

	all, err := s.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels() failed: %v", err)
	}
	if !reflect.DeepEqual(all, []string{"chan-a", "chan-b", "chan-c"}) {
		t.Errorf("ListChannels() = %v", all)
	}
}

func TestOpen_ResumesClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	for _, data := range []string{"x", "y", "z"} {
		if _, err := s1.AppendAction(ctx, "chan", []byte(data)); err != nil {
			t.Fatalf("AppendAction() failed: %v", err)
		}
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	if got := s2.LastTimestamp(); got != 3 {
		t.Errorf("LastTimestamp() after reopen = %d, want 3", got)
	}
	conf, err := s2.AppendAction(ctx, "chan", []byte("w"))
	if err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}
	if conf.Timestamp != 4 {
		t.Errorf("timestamp after reopen = %d, want 4", conf.Timestamp)
	}
}
