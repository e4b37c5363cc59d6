package budget

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/bureaucratese/internal/db"
)

var testTTLs = TTLs{Daily: 48 * time.Hour, Monthly: 62 * 24 * time.Hour}

func TestIncrBy_WindowTTL(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantTTL time.Duration
	}{
		{name: "daily", key: "bureaucratese:budget:openai:daily:2026-03-01", wantTTL: 48 * time.Hour},
		{name: "monthly", key: "bureaucratese:budget:openai:monthly:2026-03", wantTTL: 62 * 24 * time.Hour},
		// провайдер с "daily" в имени не должен путать окно
		{name: "provider named daily", key: "bureaucratese:budget:daily:monthly:2026-03", wantTTL: 62 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMockKV()
			s := New(kv, testTTLs)

			if err := s.IncrBy(context.Background(), tt.key, 10); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := s.IncrBy(context.Background(), tt.key, 5); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if kv.values[tt.key] != 15 {
				t.Errorf("expected 15, got %d", kv.values[tt.key])
			}
			if kv.ttls[tt.key] != tt.wantTTL {
				t.Errorf("ttl = %v, want %v", kv.ttls[tt.key], tt.wantTTL)
			}
		})
	}
}

func TestIncrBy_UnknownWindow(t *testing.T) {
	kv := newMockKV()
	s := New(kv, testTTLs)

	if err := s.IncrBy(context.Background(), "bureaucratese:budget:openai:weekly:2026-10", 1); err == nil {
		t.Fatal("expected error for unknown window")
	}
	if len(kv.values) != 0 {
		t.Error("nothing must be written for an unknown window")
	}
}

func TestIncrBy_StoreError(t *testing.T) {
	kv := newMockKV()
	kv.incrErr = errors.New("conn refused")
	s := New(kv, testTTLs)

	if err := s.IncrBy(context.Background(), "k:daily:2026-03-01", 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestGet_MissingKeyIsZero(t *testing.T) {
	s := New(newMockKV(), testTTLs)

	val, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 0 {
		t.Errorf("expected 0, got %d", val)
	}
}

func TestGet_ParseError(t *testing.T) {
	kv := newMockKV()
	kv.raw["bad"] = []byte("not-a-number")
	s := New(kv, testTTLs)

	if _, err := s.Get(context.Background(), "bad"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGet_ReadsIncrementedCounter(t *testing.T) {
	kv := newMockKV()
	s := New(kv, testTTLs)
	key := "bureaucratese:budget:onnx:monthly:2026-10"

	if err := s.IncrBy(context.Background(), key, 42); err != nil {
		t.Fatalf("IncrBy: %v", err)
	}
	got, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 42 {
		t.Errorf("Get = %d, want 42", got)
	}
}

// --- Mocks ---

type mockKV struct {
	values  map[string]int64
	raw     map[string][]byte
	ttls    map[string]time.Duration
	incrErr error
}

func newMockKV() *mockKV {
	return &mockKV{
		values: make(map[string]int64),
		raw:    make(map[string][]byte),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if b, ok := m.raw[key]; ok {
		return b, nil
	}
	if v, ok := m.values[key]; ok {
		return []byte(strconv.FormatInt(v, 10)), nil
	}
	return nil, db.ErrKeyNotFound
}

// IncrWithTTL keeps the first TTL, like EXPIRE NX.
func (m *mockKV) IncrWithTTL(_ context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.values[key] += val
	if _, ok := m.ttls[key]; !ok {
		m.ttls[key] = ttl
	}
	return m.values[key], nil
}
