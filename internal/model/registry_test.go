package model

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistryEmptyActive(t *testing.T) {
	r := NewRegistry()
	_, err := r.Active()
	if err == nil {
		t.Fatal("Expected error from empty registry")
	}
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Expected ErrModelUnavailable, got %v", err)
	}
}

func TestRegistryFirstRegisteredBecomesActive(t *testing.T) {
	r := NewRegistry()
	r.Register("a", NewMockModel("a"))
	r.Register("b", NewMockModel("b"))

	m, err := r.Active()
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if m.Name() != "a" {
		t.Errorf("Expected first registered model active, got %s", m.Name())
	}
}

func TestRegistrySetActive(t *testing.T) {
	r := NewRegistry()
	r.Register("a", NewMockModel("a"))
	r.Register("b", NewMockModel("b"))

	if err := r.SetActive("b"); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	m, err := r.Active()
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if m.Name() != "b" {
		t.Errorf("Expected model b active, got %s", m.Name())
	}

	if err := r.SetActive("missing"); err == nil {
		t.Error("Expected error for unknown model name")
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register("a", NewMockModel("a"))
	r.Register("b", NewMockModel("b"))

	m, err := r.Resolve("b")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Name() != "b" {
		t.Errorf("Expected model b, got %s", m.Name())
	}

	// Empty name resolves the active model
	m, err = r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") failed: %v", err)
	}
	if m.Name() != "a" {
		t.Errorf("Expected active model a, got %s", m.Name())
	}

	if _, err := r.Resolve("missing"); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Expected ErrModelUnavailable, got %v", err)
	}
}

func TestRegistrySwapDoesNotAffectHeldReference(t *testing.T) {
	r := NewRegistry()
	r.Register("a", NewMockModel("a"))
	r.Register("b", NewMockModel("b"))

	held, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if err := r.SetActive("b"); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	// The reference captured before the swap still points at model a.
	if held.Name() != "a" {
		t.Errorf("Held reference changed after swap: %s", held.Name())
	}
}

func TestRegistryConcurrentSwap(t *testing.T) {
	r := NewRegistry()
	r.Register("a", NewMockModel("a"))
	r.Register("b", NewMockModel("b"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.SetActive("a")
			_ = r.SetActive("b")
		}()
		go func() {
			defer wg.Done()
			if _, err := r.Active(); err != nil {
				t.Errorf("Active failed during swap: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Register("a", NewMockModel("a"))
	r.Register("b", NewMockModel("b"))

	names, active := r.Names()
	if len(names) != 2 {
		t.Errorf("Expected 2 names, got %d", len(names))
	}
	if active != "a" {
		t.Errorf("Expected active a, got %s", active)
	}
}
