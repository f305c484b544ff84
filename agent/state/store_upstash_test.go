package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUpstashRedisStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{keyPrefix: defaultStoreKeyPrefix}
	got, err := store.redisKey("u1")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "guidebot:context:u1" {
		t.Fatalf("redisKey() = %q, want %q", got, "guidebot:context:u1")
	}
}

func TestUpstashRedisStoreRedisKeyEmptyUser(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	_, err := store.redisKey("   ")
	if !errors.Is(err, ErrEmptyUserID) {
		t.Fatalf("redisKey() error = %v, want ErrEmptyUserID", err)
	}
}

func TestUpstashRedisStoreSaveSendsCASEval(t *testing.T) {
	t.Parallel()

	var gotCommand []any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":1}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{
			URL:   server.URL,
			Token: "token",
		},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	uc := NewUserContext("u1", time.Now())
	if err := store.Save(context.Background(), uc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if uc.Version != 1 {
		t.Fatalf("save must bump the caller's version, got %d", uc.Version)
	}

	if len(gotCommand) != 7 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "EVAL" {
		t.Fatalf("command[0] = %v, want EVAL", gotCommand[0])
	}
	if gotCommand[3] != "guidebot:context:u1" {
		t.Fatalf("command[3] = %v, want guidebot:context:u1", gotCommand[3])
	}
	if gotCommand[4] != "0" {
		t.Fatalf("command[4] = %v, want loaded version 0", gotCommand[4])
	}
}

func TestUpstashRedisStoreSaveConflict(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":0}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	uc := NewUserContext("u1", time.Now())
	uc.Version = 2
	if err := store.Save(context.Background(), uc); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("Save() error = %v, want ErrVersionConflict", err)
	}
	if uc.Version != 2 {
		t.Fatalf("losing save must not bump the version, got %d", uc.Version)
	}
}

func TestUpstashRedisStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	seed := NewUserContext("u2", time.Now().UTC())
	_ = seed.SetFact(FactPreferredLocation, "Krabi")
	seed.Version = 4
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	uc, err := store.Load(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if uc.UserID != "u2" || uc.Version != 4 {
		t.Fatalf("unexpected context: %+v", uc)
	}
	if uc.Fact(FactPreferredLocation) != "Krabi" {
		t.Fatalf("unexpected facts: %v", uc.Facts)
	}
	if len(gotCommand) != 2 || gotCommand[0] != "GET" {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}

func TestUpstashRedisStoreLoadNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, ErrContextNotFound) {
		t.Fatalf("Load() error = %v, want ErrContextNotFound", err)
	}
}

func TestUpstashRedisStoreLoadTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	if _, err := store.Load(context.Background(), "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Load() error = %v, want ErrStoreUnavailable", err)
	}
}
