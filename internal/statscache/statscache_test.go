package statscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func startMiniredis(t *testing.T) string {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)
	return mr.Addr()
}

func TestPublishThenLatestTickRoundTrips(t *testing.T) {
	addr := startMiniredis(t)
	c := New(addr, time.Minute)
	defer c.Close()

	ctx := context.Background()
	want := Summary{Success: 3, Transient: 1, Permanent: 0, Skipped: 2, Timestamp: 1000}

	if err := c.PublishTick(ctx, "/var/spool/sendmail", want); err != nil {
		t.Fatalf("PublishTick() error = %v", err)
	}

	got, err := c.LatestTick(ctx, "/var/spool/sendmail")
	if err != nil {
		t.Fatalf("LatestTick() error = %v", err)
	}
	if got != want {
		t.Errorf("LatestTick() = %+v, want %+v", got, want)
	}
}

func TestLatestTickMissingKeyReturnsRedisNil(t *testing.T) {
	addr := startMiniredis(t)
	c := New(addr, time.Minute)
	defer c.Close()

	_, err := c.LatestTick(context.Background(), "/never/published")
	if !errors.Is(err, redis.Nil) {
		t.Errorf("expected wrapped redis.Nil, got %v", err)
	}
}

func TestPublishTickOverwritesPriorSummary(t *testing.T) {
	addr := startMiniredis(t)
	c := New(addr, time.Minute)
	defer c.Close()

	ctx := context.Background()
	first := Summary{Success: 1, Timestamp: 1}
	second := Summary{Success: 5, Timestamp: 2}

	if err := c.PublishTick(ctx, "/spool", first); err != nil {
		t.Fatalf("PublishTick() error = %v", err)
	}
	if err := c.PublishTick(ctx, "/spool", second); err != nil {
		t.Fatalf("PublishTick() error = %v", err)
	}

	got, err := c.LatestTick(ctx, "/spool")
	if err != nil {
		t.Fatalf("LatestTick() error = %v", err)
	}
	if got != second {
		t.Errorf("LatestTick() = %+v, want %+v", got, second)
	}
}

func TestDistinctSpoolPathsDoNotCollide(t *testing.T) {
	addr := startMiniredis(t)
	c := New(addr, time.Minute)
	defer c.Close()

	ctx := context.Background()
	a := Summary{Success: 1}
	b := Summary{Success: 2}

	if err := c.PublishTick(ctx, "/spool/a", a); err != nil {
		t.Fatalf("PublishTick() error = %v", err)
	}
	if err := c.PublishTick(ctx, "/spool/b", b); err != nil {
		t.Fatalf("PublishTick() error = %v", err)
	}

	gotA, err := c.LatestTick(ctx, "/spool/a")
	if err != nil {
		t.Fatalf("LatestTick(a) error = %v", err)
	}
	gotB, err := c.LatestTick(ctx, "/spool/b")
	if err != nil {
		t.Fatalf("LatestTick(b) error = %v", err)
	}
	if gotA != a || gotB != b {
		t.Errorf("cross-contamination: gotA=%+v gotB=%+v", gotA, gotB)
	}
}
