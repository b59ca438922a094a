package ir

import "testing"

func TestPackedOperandRoundTrip(t *testing.T) {
	ops := []Operand{
		LocalOperand(0),
		LocalOperand(1),
		LocalOperand(InstIdx(packedIndexMask)),
		ConstOperand(0),
		ConstOperand(ConstIdx(packedIndexMask)),
	}
	for _, o := range ops {
		p, err := NewPackedOperand(o)
		if err != nil {
			t.Fatalf("NewPackedOperand(%+v): %v", o, err)
		}
		if got := p.Unpack(); got != o {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, o)
		}
	}
}

func TestPackedOperandOverflow(t *testing.T) {
	_, err := NewPackedOperand(LocalOperand(InstIdx(packedIndexMask + 1)))
	if err == nil {
		t.Fatalf("expected LimitExceeded for an out-of-range index")
	}
}
