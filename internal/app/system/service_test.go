package system

import (
	"context"
	"errors"
	"testing"
)

type recorded struct {
	name     string
	order    *[]string
	startErr error
}

func (r *recorded) Name() string { return r.name }

func (r *recorded) Start(context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	*r.order = append(*r.order, "start:"+r.name)
	return nil
}

func (r *recorded) Stop(context.Context) error {
	*r.order = append(*r.order, "stop:"+r.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var order []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&recorded{name: name, order: &order}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(order) != len(want) {
		t.Fatalf("order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order %v, want %v", order, want)
		}
	}
}

func TestManagerStartFailureUnwinds(t *testing.T) {
	var order []string
	boom := errors.New("boom")

	m := NewManager()
	_ = m.Register(&recorded{name: "a", order: &order})
	_ = m.Register(&recorded{name: "b", order: &order, startErr: boom})

	if err := m.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if len(order) != 2 || order[1] != "stop:a" {
		t.Fatalf("expected rollback stop of a, got %v", order)
	}
}

func TestManagerRejectsDuplicates(t *testing.T) {
	var order []string
	m := NewManager()
	if err := m.Register(&recorded{name: "a", order: &order}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "a"}); err == nil {
		t.Fatalf("expected duplicate rejection")
	}
	if err := m.Register(NoopService{ServiceName: "b"}); err != nil {
		t.Fatalf("register noop: %v", err)
	}
}
