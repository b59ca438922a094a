package ir

import "testing"

func TestU24RoundTrip(t *testing.T) {
	cases := []int{0, 1, 255, 65536, u24Max}
	for _, n := range cases {
		u, ok := NewU24(n)
		if !ok {
			t.Fatalf("NewU24(%d) reported not-ok", n)
		}
		if got := u.ToUsize(); got != n {
			t.Fatalf("NewU24(%d).ToUsize() = %d", n, got)
		}
	}
	if _, ok := NewU24(u24Max + 1); ok {
		t.Fatalf("NewU24(%d) should have failed", u24Max+1)
	}
	if _, ok := NewU24(-1); ok {
		t.Fatalf("NewU24(-1) should have failed")
	}
}

func TestNarrowIndexLimits(t *testing.T) {
	if _, ok := NewInstIdx(u16Max); !ok {
		t.Fatalf("NewInstIdx(%d) should succeed", u16Max)
	}
	if _, ok := NewInstIdx(u16Max + 1); ok {
		t.Fatalf("NewInstIdx(%d) should fail", u16Max+1)
	}
}
