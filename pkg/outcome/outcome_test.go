package outcome

import (
	"errors"
	"testing"
)

func TestZeroValueIsUnresolved(t *testing.T) {
	var o Outcome[int]

	if o.State() != Unresolved {
		t.Errorf("state: expected Unresolved, got %v", o.State())
	}
	if _, ok := o.Get(); ok {
		t.Error("expected Get to report no value")
	}
	if o.Err() != nil {
		t.Errorf("expected nil error, got %v", o.Err())
	}
}

func TestOf(t *testing.T) {
	o := Of("alice")

	if o.State() != Resolved {
		t.Errorf("state: expected Resolved, got %v", o.State())
	}
	v, ok := o.Get()
	if !ok || v != "alice" {
		t.Errorf("Get: expected (alice, true), got (%q, %v)", v, ok)
	}
	if o.Err() != nil {
		t.Errorf("expected nil error, got %v", o.Err())
	}
}

func TestFail(t *testing.T) {
	cause := errors.New("boom")
	o := Fail[string](cause)

	if o.State() != Failed {
		t.Errorf("state: expected Failed, got %v", o.State())
	}
	if _, ok := o.Get(); ok {
		t.Error("expected Get to report no value")
	}
	if !errors.Is(o.Err(), cause) {
		t.Errorf("Err: expected %v, got %v", cause, o.Err())
	}
}

func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{Unresolved, "unresolved"},
		{Failed, "failed"},
		{Resolved, "resolved"},
	}

	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("String(%d): expected %q, got %q", tc.state, tc.want, got)
		}
	}
}
