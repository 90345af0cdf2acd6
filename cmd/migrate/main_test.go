package main

import (
	"context"
	"errors"
	"testing"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	src, err := newSource()
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected first version 1, got %d", version)
	}

	count := 1
	for {
		next, err := src.Next(version)
		if err != nil {
			break
		}
		if next != version+1 {
			t.Fatalf("expected version %d after %d, got %d", version+1, version, next)
		}
		version = next
		count++
	}
	if count != 5 {
		t.Fatalf("expected 5 migrations, got %d", count)
	}

	for v := uint(1); v <= version; v++ {
		up, _, err := src.ReadUp(v)
		if err != nil {
			t.Fatalf("read up %d: %v", v, err)
		}
		_ = up.Close()
		down, _, err := src.ReadDown(v)
		if err != nil {
			t.Fatalf("read down %d: %v", v, err)
		}
		_ = down.Close()
	}
}

type fakeUpserter struct {
	seen   []string
	failOn string
}

func (f *fakeUpserter) Upsert(_ context.Context, rule disclosure.Rule) (disclosure.Rule, error) {
	if rule.ID == f.failOn {
		return rule, errors.New("boom")
	}
	f.seen = append(f.seen, rule.ID)
	return rule, nil
}

func TestUpsertAll(t *testing.T) {
	list := []disclosure.Rule{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	store := &fakeUpserter{}
	count, err := upsertAll(context.Background(), store, list)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 || len(store.seen) != 3 {
		t.Fatalf("expected 3 upserts, got %d (%v)", count, store.seen)
	}

	store = &fakeUpserter{failOn: "b"}
	count, err = upsertAll(context.Background(), store, list)
	if err == nil {
		t.Fatalf("expected error")
	}
	if count != 1 {
		t.Fatalf("expected 1 rule before failure, got %d", count)
	}
}
