package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oratorbot/orator/internal/audit"
)

type mockStore struct {
	mu sync.Mutex

	InsertError error
	KeysResult  []audit.Key
	KeysError   error
	DeleteError error

	Inserted        []insertedPair
	KeysRequested   [][]string
	DeletedKeys     [][]audit.Key
	CallCountInsert int
}

type insertedPair struct {
	Detailed  audit.DetailedEvent
	Anonymous audit.AnonymousEvent
}

func (m *mockStore) Insert(_ context.Context, d audit.DetailedEvent, a audit.AnonymousEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountInsert++
	m.Inserted = append(m.Inserted, insertedPair{Detailed: d, Anonymous: a})
	return m.InsertError
}

func (m *mockStore) Keys(_ context.Context, userIDs []string) ([]audit.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.KeysRequested = append(m.KeysRequested, userIDs)
	return m.KeysResult, m.KeysError
}

func (m *mockStore) Delete(_ context.Context, keys []audit.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeletedKeys = append(m.DeletedKeys, keys)
	return m.DeleteError
}

func TestAnonymize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no mentions",
			in:   "say text:hello world",
			want: "say text:hello world",
		},
		{
			name: "single user mention",
			in:   "say text:hi <@123456>",
			want: "say text:hi user0",
		},
		{
			name: "nickname mention form",
			in:   "say text:hi <@!123456>",
			want: "say text:hi user0",
		},
		{
			name: "role mention",
			in:   "say text:ping <@&42>",
			want: "say text:ping user0",
		},
		{
			name: "repeated id keeps pseudonym",
			in:   "<@1> and <@2> and <@1> again",
			want: "user0 and user1 and user0 again",
		},
		{
			name: "first-seen numbering",
			in:   "<@!900> <@700> <@800> <@700>",
			want: "user0 user1 user2 user1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := audit.Anonymize(tt.in); got != tt.want {
				t.Errorf("Anonymize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecorderWritesBothTwins(t *testing.T) {
	t.Parallel()
	store := &mockStore{}
	rec := audit.NewRecorder(store, time.Hour)

	created := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	rec.Record(context.Background(), audit.Event{
		UserID:     "123",
		UserName:   "alice",
		GuildID:    "g1",
		Command:    "say",
		Invocation: "say text:hi <@123>",
		CreatedAt:  created,
	}, true)

	if store.CallCountInsert != 1 {
		t.Fatalf("expected 1 insert, got %d", store.CallCountInsert)
	}
	pair := store.Inserted[0]
	if pair.Detailed.UserName != "alice" || !pair.Detailed.Valid {
		t.Errorf("unexpected detailed twin: %+v", pair.Detailed)
	}
	if want := created.Add(time.Hour); !pair.Detailed.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", pair.Detailed.ExpiresAt, want)
	}
	if pair.Anonymous.Invocation != "say text:hi user0" {
		t.Errorf("anonymous invocation = %q", pair.Anonymous.Invocation)
	}
}

func TestRecorderSwallowsStoreErrors(t *testing.T) {
	t.Parallel()
	store := &mockStore{InsertError: errors.New("connection refused")}
	rec := audit.NewRecorder(store, time.Hour)

	// Must not panic or surface the error.
	rec.Record(context.Background(), audit.Event{Command: "say"}, true)
	if store.CallCountInsert != 1 {
		t.Fatalf("expected the insert to be attempted, got %d", store.CallCountInsert)
	}
}

func TestRecorderNilStoreIsNoop(t *testing.T) {
	t.Parallel()
	rec := audit.NewRecorder(nil, time.Hour)
	if rec.Enabled() {
		t.Error("recorder without store must report disabled")
	}
	rec.Record(context.Background(), audit.Event{Command: "say"}, true)
	if err := rec.BulkDelete(context.Background(), []string{"1"}); err != nil {
		t.Errorf("BulkDelete on nil store: %v", err)
	}
}

func TestBulkDeleteTwoPhases(t *testing.T) {
	t.Parallel()
	store := &mockStore{KeysResult: []audit.Key{3, 7, 9}}
	rec := audit.NewRecorder(store, time.Hour)

	if err := rec.BulkDelete(context.Background(), []string{"123", "456"}); err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if len(store.KeysRequested) != 1 || len(store.KeysRequested[0]) != 2 {
		t.Fatalf("unexpected key scan calls: %v", store.KeysRequested)
	}
	if len(store.DeletedKeys) != 1 || len(store.DeletedKeys[0]) != 3 {
		t.Fatalf("unexpected delete calls: %v", store.DeletedKeys)
	}
}

func TestBulkDeleteNoMatchesSkipsDelete(t *testing.T) {
	t.Parallel()
	store := &mockStore{}
	rec := audit.NewRecorder(store, time.Hour)

	if err := rec.BulkDelete(context.Background(), []string{"123"}); err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if len(store.DeletedKeys) != 0 {
		t.Errorf("delete must not run when no keys match")
	}
}

func TestBulkDeletePropagatesScanError(t *testing.T) {
	t.Parallel()
	scanErr := errors.New("scan failed")
	store := &mockStore{KeysError: scanErr}
	rec := audit.NewRecorder(store, time.Hour)

	if err := rec.BulkDelete(context.Background(), []string{"123"}); !errors.Is(err, scanErr) {
		t.Errorf("expected scan error, got %v", err)
	}
}
