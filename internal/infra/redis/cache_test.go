package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client), srv
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	type board struct {
		QuizID string
		Scores map[string]int
	}
	cache.Put(ctx, "quiz:q1:leaderboard", board{QuizID: "q1", Scores: map[string]int{"p1": 2}}, time.Minute)

	var got board
	if !cache.Get(ctx, "quiz:q1:leaderboard", &got) {
		t.Fatal("expected hit")
	}
	if got.QuizID != "q1" || got.Scores["p1"] != 2 {
		t.Fatalf("unexpected value %+v", got)
	}

	cache.Invalidate(ctx, "quiz:q1:leaderboard")
	if cache.Get(ctx, "quiz:q1:leaderboard", &got) {
		t.Fatal("expected miss after invalidate")
	}
}

func TestCacheTTLIsBounded(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)

	ttl := 10 * time.Second
	cache.Put(ctx, "k", "v", ttl)

	got := srv.TTL("k")
	if got < ttl || got > ttl+ttl/10 {
		t.Fatalf("ttl %v outside [%v, %v]", got, ttl, ttl+ttl/10)
	}

	srv.FastForward(got + time.Second)
	var v string
	if cache.Get(ctx, "k", &v) {
		t.Fatal("expected miss after expiry")
	}
}

func TestCacheDegradesToMissWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)

	cache.Put(ctx, "k", "v", time.Minute)
	srv.Close()

	// Outage must never surface as an error to callers.
	var v string
	if cache.Get(ctx, "k", &v) {
		t.Fatal("expected miss when redis is down")
	}
	cache.Put(ctx, "k2", "v2", time.Minute)
	cache.Invalidate(ctx, "k")
}

func TestCacheDecodeFailureIsAMiss(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)

	if err := srv.Set("k", "not-json{"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var v struct{ X int }
	if cache.Get(ctx, "k", &v) {
		t.Fatal("expected miss on undecodable value")
	}
}
