package errs

import (
	"errors"
	"io"
	"testing"
)

func TestWrapKeepsChain(t *testing.T) {
	err := Wrap(Wrapf(io.EOF, "read record %d", 7), "load page")
	if !errors.Is(err, io.EOF) {
		t.Fatalf("errors.Is(io.EOF) = false for %v", err)
	}
	if err.Error() != "load page: read record 7: EOF" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if Wrap(nil, "noop") != nil {
		t.Fatalf("Wrap(nil) should stay nil")
	}
}

func TestChainIncludesJoinedBranches(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	chain := Chain(Wrap(errors.Join(first, second), "outer"))

	want := []string{"outer: first\nsecond", "first\nsecond", "first", "second"}
	if len(chain) != len(want) {
		t.Fatalf("Chain() = %q, want %q", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("Chain()[%d] = %q, want %q", i, chain[i], want[i])
		}
	}
}
