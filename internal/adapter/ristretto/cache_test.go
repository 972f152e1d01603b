package ristretto_test

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/careline/internal/adapter/ristretto"
	"github.com/Strob0t/careline/internal/port/cache/cachetest"
)

func TestSetGetDelete(t *testing.T) {
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "idem-1", []byte(`{"status":200}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(ctx, "idem-1")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if string(got) != `{"status":200}` {
		t.Errorf("value = %s", got)
	}

	got[0] = 'X'
	again, _, _ := c.Get(ctx, "idem-1")
	if again[0] != '{' {
		t.Error("Get returned shared storage")
	}

	if err := c.Delete(ctx, "idem-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "idem-1"); ok {
		t.Error("value survived Delete")
	}
}

func TestGetMiss(t *testing.T) {
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, ok, err := c.Get(context.Background(), "nope"); ok || err != nil {
		t.Errorf("Get = %v, %v", ok, err)
	}
}

func TestContract(t *testing.T) {
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	cachetest.Run(t, c)
}
