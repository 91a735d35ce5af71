package errcode

import "testing"

func TestIntMapping(t *testing.T) {
	cases := []struct {
		c    Code
		want int
	}{
		{OK, 1},
		{BitstreamNotFound, 2},
		{InvalidCmdSchema, 3},
		{InvalidArg, 4},
		{BitstreamLoadFailed, 5},
		{InternalError, 6},
		{EmulationError, 7},
		{DeploymentError, 8},
		{HilBusConflictWarning, 9},
		{DriverFileNotFound, 10},
		{DriverWriteFailed, 11},
	}
	for _, c := range cases {
		if got := c.c.Int(); got != c.want {
			t.Errorf("%s.Int() = %d, want %d", c.c, got, c.want)
		}
	}
}

func TestOfUnwraps(t *testing.T) {
	err := Wrap(DeploymentError, "deploy", errSentinel)
	if Of(err) != DeploymentError {
		t.Fatalf("Of(wrapped) = %v, want %v", Of(err), DeploymentError)
	}
	if Of(nil) != OK {
		t.Fatalf("Of(nil) = %v, want OK", Of(nil))
	}
	if Of(errSentinel) != InternalError {
		t.Fatalf("Of(plain) = %v, want InternalError", Of(errSentinel))
	}
}

type sentinelErr string

func (s sentinelErr) Error() string { return string(s) }

var errSentinel = sentinelErr("boom")
