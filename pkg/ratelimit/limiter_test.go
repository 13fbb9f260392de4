package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestInMemoryWindow(t *testing.T) {
	l := NewInMemory(50 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if d := l.Allow("ip1", 3); !d.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if d := l.Allow("ip1", 3); d.Allowed {
		t.Fatalf("fourth attempt should be blocked")
	}
	if d := l.Allow("ip2", 3); !d.Allowed {
		t.Fatalf("other key should have its own window")
	}
	time.Sleep(60 * time.Millisecond)
	if d := l.Allow("ip1", 3); !d.Allowed {
		t.Fatalf("window should have reset")
	}
}

func TestRedisLimiter(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer srv.Close()
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	l := NewRedis(client, time.Minute)
	if d := l.Allow("k", 2); !d.Allowed || d.Count != 1 {
		t.Fatalf("first attempt: %+v", d)
	}
	if d := l.Allow("k", 2); !d.Allowed || d.Remaining != 0 {
		t.Fatalf("second attempt: %+v", d)
	}
	if d := l.Allow("k", 2); d.Allowed {
		t.Fatalf("third attempt should be blocked")
	}
}

func TestRedisLimiterFallsBack(t *testing.T) {
	l := NewRedis(nil, time.Minute)
	if d := l.Allow("k", 1); !d.Allowed {
		t.Fatalf("fallback should allow first attempt")
	}
	if d := l.Allow("k", 1); d.Allowed {
		t.Fatalf("fallback should block second attempt")
	}
}
