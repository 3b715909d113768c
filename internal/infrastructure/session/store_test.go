package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/core/ports"
)

func TestStoresRoundTripAndNotFound(t *testing.T) {
	stores := map[string]ports.SessionStore{
		"memory": NewMemoryStore(),
		"ttl":    NewTTLStore(time.Minute, time.Minute),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := store.Put(ctx, domain.Session{Filename: "a.txt", Format: domain.FormatTXT, Content: "hello world"})
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if id == "" {
				t.Fatalf("expected generated id")
			}

			got, err := store.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.ID != id || got.Content != "hello world" || got.CreatedAt.IsZero() {
				t.Fatalf("unexpected session %+v", got)
			}

			_, err = store.Get(ctx, "missing")
			if !domain.IsKind(err, domain.ErrSessionNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestPutIgnoresCallerSuppliedID(t *testing.T) {
	store := NewMemoryStore()
	id, _ := store.Put(context.Background(), domain.Session{ID: "fixed", Content: "x"})
	if id == "fixed" {
		t.Fatalf("store must generate identifiers")
	}
}

func TestMemoryStoreConcurrentPuts(t *testing.T) {
	store := NewMemoryStore()
	const workers = 32
	const perWorker = 50

	var wg sync.WaitGroup
	ids := make(chan string, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := store.Put(context.Background(), domain.Session{Content: fmt.Sprintf("%d-%d", w, i)})
				if err != nil {
					t.Errorf("Put() error = %v", err)
					return
				}
				if _, err := store.Get(context.Background(), id); err != nil {
					t.Errorf("Get(%s) error = %v", id, err)
				}
				ids <- id
			}
		}(w)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	if len(seen) != workers*perWorker || store.Len() != workers*perWorker {
		t.Fatalf("expected %d unique sessions, got %d ids and %d stored", workers*perWorker, len(seen), store.Len())
	}
}

func TestTTLStoreExpires(t *testing.T) {
	store := NewTTLStore(20*time.Millisecond, time.Minute)
	id, _ := store.Put(context.Background(), domain.Session{Content: "short lived"})

	time.Sleep(60 * time.Millisecond)
	if _, err := store.Get(context.Background(), id); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be not found, got %v", err)
	}
}

func TestRedisStoreUnavailableIsTemporary(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := newRedisStoreWithClient(client, time.Minute)
	defer store.Close()

	_, err := store.Put(context.Background(), domain.Session{Content: "x"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	_, err = store.Get(context.Background(), "any")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestNewRedisStoreRejectsMalformedURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "http://localhost:6379", time.Minute)
	if err == nil {
		t.Fatalf("expected error for non-redis scheme")
	}
	if !strings.Contains(err.Error(), "parse redis url") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
