package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"projecthub/pkg/config"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr(), PoolSize: 4})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer rdb.Close()
	if got := rdb.Options().PoolSize; got != 4 {
		t.Errorf("pool size = %d", got)
	}
}

func TestConnectGivesUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Connect(ctx, config.RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}
