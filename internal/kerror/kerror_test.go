package kerror

import "testing"

func TestErrnoForKnownKinds(t *testing.T) {
	cases := []struct {
		err  KError
		want int32
	}{
		{New(AlreadyExists), int32(AlreadyExists)},
		{New(OOM), int32(OOM)},
	}
	for _, c := range cases {
		if got := c.err.Errno(); got != c.want {
			t.Errorf("KError{%v}.Errno() = %d, want %d", c.err.Kind, got, c.want)
		}
	}
}

func TestErrnoForUnknownCarriesRawCode(t *testing.T) {
	e := NewUnknown(-17)
	if got := e.Errno(); got != -17 {
		t.Fatalf("Errno() = %d, want -17", got)
	}
}

func TestErrnoAlwaysNegative(t *testing.T) {
	for _, e := range []KError{New(AlreadyExists), New(OOM), NewUnknown(-1)} {
		if e.Errno() >= 0 {
			t.Fatalf("Errno() = %d, want a negative value for %+v", e.Errno(), e)
		}
	}
}

func TestErrorStringsAreDistinctAndNonEmpty(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range []KError{New(AlreadyExists), New(OOM), NewUnknown(-99)} {
		s := e.Error()
		if s == "" {
			t.Fatalf("Error() returned empty string for %+v", e)
		}
		if seen[s] {
			t.Fatalf("Error() string %q reused across distinct KError values", s)
		}
		seen[s] = true
	}
}
