package worker

import (
	"errors"
	"testing"

	"concierge/internal/prompt"
)

func newSeededRegistry(t *testing.T) (*Registry, *prompt.MemStore) {
	t.Helper()
	store := prompt.NewMemStore(nil)
	if err := store.SaveWorker("reminder_worker", "Input: {descriptions}"); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(store)
	err := r.SeedBuiltins(map[string]string{
		"reminder_worker": "creates reminders",
		"weather_worker":  "answers weather questions",
	})
	if err != nil {
		t.Fatalf("SeedBuiltins failed: %v", err)
	}
	return r, store
}

func TestResolve_Builtin(t *testing.T) {
	r, _ := newSeededRegistry(t)

	kind, tmpl, err := r.Resolve("reminder_worker")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if kind.Origin != OriginBuiltin {
		t.Errorf("origin = %s, want builtin", kind.Origin)
	}
	if tmpl != "Input: {descriptions}" {
		t.Errorf("template = %q", tmpl)
	}
}

func TestResolve_TemplateMissing(t *testing.T) {
	r, _ := newSeededRegistry(t)

	// weather_worker is registered but has no stored template.
	_, _, err := r.Resolve("weather_worker")
	if !errors.Is(err, ErrTemplateMissing) {
		t.Fatalf("expected ErrTemplateMissing, got %v", err)
	}
}

func TestResolve_UnknownSentinelNeverRoutes(t *testing.T) {
	r, _ := newSeededRegistry(t)
	for _, name := range []string{Unknown, "", "never_registered"} {
		if _, _, err := r.Resolve(name); !errors.Is(err, ErrUnknownKind) {
			t.Errorf("Resolve(%q): expected ErrUnknownKind, got %v", name, err)
		}
	}
}

func TestRegister_SynthesizedIndistinguishableToRouting(t *testing.T) {
	r, store := newSeededRegistry(t)

	if _, err := r.Register("travel_worker", "plans trips"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := store.SaveWorker("travel_worker", "Role: travel planner\nInput: {descriptions}"); err != nil {
		t.Fatal(err)
	}

	kind, tmpl, err := r.Resolve("travel_worker")
	if err != nil {
		t.Fatalf("Resolve after Register failed: %v", err)
	}
	if kind.Origin != OriginSynthesized {
		t.Errorf("origin = %s", kind.Origin)
	}
	if tmpl == "" {
		t.Error("expected template text")
	}
}

func TestRegister_RejectsSentinel(t *testing.T) {
	r, _ := newSeededRegistry(t)
	if _, err := r.Register(Unknown, "x"); err == nil {
		t.Error("expected error registering the unknown sentinel")
	}
	if _, err := r.Register("", "x"); err == nil {
		t.Error("expected error registering empty name")
	}
}

func TestSeedBuiltins_IncludesStoredTemplates(t *testing.T) {
	store := prompt.NewMemStore(nil)
	if err := store.SaveWorker("legacy_worker", "t"); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(store)
	if err := r.SeedBuiltins(nil); err != nil {
		t.Fatal(err)
	}
	if !r.IsKnown("legacy_worker") {
		t.Error("worker with stored template should be seeded")
	}
}

func TestKinds_Sorted(t *testing.T) {
	r, _ := newSeededRegistry(t)
	kinds := r.Kinds()
	if len(kinds) != 2 {
		t.Fatalf("expected 2 kinds, got %d", len(kinds))
	}
	if kinds[0].Name != "reminder_worker" || kinds[1].Name != "weather_worker" {
		t.Errorf("unexpected order: %v", kinds)
	}
}
