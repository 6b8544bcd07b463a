package throttle

import (
	"testing"
	"time"
)

func TestGateBlocksRepeatWithinCooldown(t *testing.T) {
	gate := NewGate(2 * time.Second)
	current := time.Now()
	gate.now = func() time.Time { return current }

	if ok, _ := gate.Allow("42", "swap"); !ok {
		t.Fatal("first attempt must pass")
	}
	ok, wait := gate.Allow("42", "swap")
	if ok {
		t.Fatal("repeat within cooldown must be blocked")
	}
	if wait <= 0 || wait > 2*time.Second {
		t.Fatalf("unexpected remaining wait: %v", wait)
	}

	current = current.Add(2 * time.Second)
	if ok, _ := gate.Allow("42", "swap"); !ok {
		t.Fatal("attempt after cooldown must pass")
	}
}

func TestGateScopesByUserAndAction(t *testing.T) {
	gate := NewGate(time.Minute)
	if ok, _ := gate.Allow("42", "swap"); !ok {
		t.Fatal("first attempt must pass")
	}
	if ok, _ := gate.Allow("42", "quote"); !ok {
		t.Fatal("different action must not be blocked")
	}
	if ok, _ := gate.Allow("99", "swap"); !ok {
		t.Fatal("different user must not be blocked")
	}
}

func TestGateZeroCooldownDisables(t *testing.T) {
	gate := NewGate(0)
	for i := 0; i < 3; i++ {
		if ok, _ := gate.Allow("42", "swap"); !ok {
			t.Fatal("zero cooldown must never block")
		}
	}
}

func TestNilGateAllows(t *testing.T) {
	var gate *Gate
	if ok, _ := gate.Allow("42", "swap"); !ok {
		t.Fatal("nil gate must allow")
	}
}
