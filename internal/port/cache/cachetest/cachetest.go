// Package cachetest checks a cache.Cache implementation against the port
// contract.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/careline/internal/port/cache"
)

// keys look like the idempotency middleware's: method, path and a client key.
const (
	keyA = "idem:POST /a2a/tasks:7c1e 42"
	keyB = "idem:POST /a2a:ключ/2"
)

// Run exercises c with the contract every cache adapter must honor.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, keyA, []byte(`{"status":201}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, keyA)
		if err != nil || !found {
			t.Fatalf("Get = %v, %v", found, err)
		}
		if string(val) != `{"status":201}` {
			t.Fatalf("value = %s", val)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		val, found, err := c.Get(ctx, "idem:never-set")
		if err != nil || found || val != nil {
			t.Fatalf("Get = %q, %v, %v; want a clean miss", val, found, err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, keyB, []byte("v1"), time.Minute)
		_ = c.Set(ctx, keyB, []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, keyB)
		if err != nil || !found || string(val) != "v2" {
			t.Fatalf("Get = %q, %v, %v; want v2", val, found, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, keyA, []byte("gone"), time.Minute)
		if err := c.Delete(ctx, keyA); err != nil {
			t.Fatal(err)
		}
		if _, found, err := c.Get(ctx, keyA); err != nil || found {
			t.Fatalf("Get after Delete = %v, %v", found, err)
		}
		if err := c.Delete(ctx, keyA); err != nil {
			t.Fatalf("second Delete = %v", err)
		}
	})
}
