package profile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type memStore struct {
	names map[string]string
	reads int
	err   error
}

func newMemStore() *memStore {
	return &memStore{names: map[string]string{}}
}

func (m *memStore) Nickname(ctx context.Context, userID string) (string, error) {
	m.reads++
	if m.err != nil {
		return "", m.err
	}
	return m.names[userID], nil
}

func (m *memStore) UpdateNickname(ctx context.Context, userID, nickname string) error {
	if m.err != nil {
		return m.err
	}
	m.names[userID] = nickname
	return nil
}

func TestNicknameIsCached(t *testing.T) {
	store := newMemStore()
	store.names["u-1"] = "Founder"
	svc := NewService(store, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := svc.Nickname(ctx, "u-1")
		if err != nil {
			t.Fatalf("Nickname() error = %v", err)
		}
		if got != "Founder" {
			t.Errorf("Nickname() = %q, want Founder", got)
		}
	}
	if store.reads != 1 {
		t.Errorf("store reads = %d, want 1", store.reads)
	}

	svc.Forget("u-1")
	if _, err := svc.Nickname(ctx, "u-1"); err != nil {
		t.Fatalf("Nickname() error = %v", err)
	}
	if store.reads != 2 {
		t.Errorf("store reads after Forget = %d, want 2", store.reads)
	}
}

func TestUpdateNickname(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "trimmed", in: "  Ada  ", want: "Ada"},
		{name: "empty", in: "   ", wantErr: ErrEmptyNickname},
		{name: "truncated", in: strings.Repeat("é", MaxNicknameLength+5), want: strings.Repeat("é", MaxNicknameLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := NewService(store, 10, time.Minute)

			got, err := svc.UpdateNickname(context.Background(), "u-1", tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateNickname() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("UpdateNickname() = %q, want %q", got, tt.want)
			}
			if tt.wantErr == nil && store.names["u-1"] != tt.want {
				t.Errorf("stored = %q, want %q", store.names["u-1"], tt.want)
			}
		})
	}
}

func TestUpdateNicknameRefreshesCache(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, 10, time.Minute)
	ctx := context.Background()

	if _, err := svc.Nickname(ctx, "u-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateNickname(ctx, "u-1", "Grace"); err != nil {
		t.Fatal(err)
	}

	got, _ := svc.Nickname(ctx, "u-1")
	if got != "Grace" {
		t.Errorf("Nickname() = %q, want Grace", got)
	}
	if store.reads != 1 {
		t.Errorf("store reads = %d, want 1", store.reads)
	}
}

func TestStoreErrors(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	svc := NewService(store, 10, time.Minute)

	if _, err := svc.Nickname(context.Background(), "u-1"); !errors.Is(err, store.err) {
		t.Errorf("Nickname() error = %v, want wrapped store error", err)
	}
	if _, err := svc.UpdateNickname(context.Background(), "u-1", "x"); !errors.Is(err, store.err) {
		t.Errorf("UpdateNickname() error = %v, want wrapped store error", err)
	}
}
