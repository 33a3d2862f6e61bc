package gate

import "testing"

func TestPaymentCache_SetThenGet(t *testing.T) {
	c := newPaymentCache()
	if c.get("ag_x") {
		t.Fatal("expected miss before set")
	}
	c.set("ag_x")
	if !c.get("ag_x") {
		t.Fatal("expected hit after set")
	}
	if c.size() != 1 {
		t.Fatalf("size = %d, want 1", c.size())
	}
}

func TestPaymentCache_Expiry(t *testing.T) {
	c := newPaymentCache()
	c.ttl = 0
	c.set("ag_x")
	if c.get("ag_x") {
		t.Fatal("expected entry with zero ttl to be expired immediately")
	}
	if c.size() != 0 {
		t.Fatalf("expired entry should have been evicted on get, size = %d", c.size())
	}
}

func TestPaymentCache_EvictsOldestPastCapacity(t *testing.T) {
	c := newPaymentCache()
	c.capacity = 3

	c.set("a")
	c.set("b")
	c.set("c")
	c.set("d") // evicts "a"

	if c.get("a") {
		t.Error("expected oldest entry to be evicted")
	}
	if !c.get("b") || !c.get("c") || !c.get("d") {
		t.Error("expected the three most recent entries to remain")
	}
	if c.size() != 3 {
		t.Fatalf("size = %d, want 3", c.size())
	}
}

func TestPaymentCache_ReSetRefreshesPosition(t *testing.T) {
	c := newPaymentCache()
	c.capacity = 2

	c.set("a")
	c.set("b")
	c.set("a") // refresh "a" to the back
	c.set("c") // should evict "b", not "a"

	if c.get("b") {
		t.Error("expected b to be evicted")
	}
	if !c.get("a") || !c.get("c") {
		t.Error("expected a and c to remain")
	}
}
