package rudp

import "testing"

func TestSeqSetSetClearLen(t *testing.T) {
	s := newSeqSet(200)
	if s.len() != 0 {
		t.Fatalf("expected empty set, got len %d", s.len())
	}
	s.set(5)
	s.set(130)
	s.set(5) // duplicate set is a no-op on count
	if s.len() != 2 {
		t.Fatalf("expected len 2, got %d", s.len())
	}
	if !s.has(5) || !s.has(130) {
		t.Fatal("expected both bits set")
	}
	s.clear(5)
	if s.has(5) {
		t.Fatal("expected bit 5 cleared")
	}
	if s.len() != 1 {
		t.Fatalf("expected len 1 after clear, got %d", s.len())
	}
}

func TestFirstUnset(t *testing.T) {
	a := newSeqSet(10)
	b := newSeqSet(10)
	a.set(0)
	a.set(1)
	b.set(2)
	seq, ok := firstUnset(10, a, b)
	if !ok || seq != 3 {
		t.Fatalf("expected first unset 3, got %d ok=%v", seq, ok)
	}
}

func TestFirstUnsetNoneAvailable(t *testing.T) {
	a := newSeqSet(3)
	b := newSeqSet(3)
	a.set(0)
	a.set(1)
	b.set(2)
	_, ok := firstUnset(3, a, b)
	if ok {
		t.Fatal("expected no candidate when all sequences are covered")
	}
}

func TestForEachStableUnderMutation(t *testing.T) {
	s := newSeqSet(5)
	s.set(0)
	s.set(2)
	s.set(4)

	var seen []uint16
	s.forEach(5, func(i uint16) {
		seen = append(seen, i)
		s.clear(i)
	})
	if len(seen) != 3 || seen[0] != 0 || seen[1] != 2 || seen[2] != 4 {
		t.Fatalf("unexpected iteration order/content: %v", seen)
	}
	if s.len() != 0 {
		t.Fatalf("expected all cleared, got len %d", s.len())
	}
}
