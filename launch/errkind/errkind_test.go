package errkind

import (
	"syscall"
	"testing"
)

func TestWrapClassifiesENOMEMAsResourceNotAvailable(t *testing.T) {
	e := Wrap(syscall.ENOMEM, "clone")
	if e.Kind != ResourceNotAvailable {
		t.Errorf("Kind = %v, want ResourceNotAvailable", e.Kind)
	}
	if e.Errno != int(syscall.ENOMEM) {
		t.Errorf("Errno = %d, want %d", e.Errno, syscall.ENOMEM)
	}
}

func TestWrapClassifiesEINVAL(t *testing.T) {
	e := Wrap(syscall.EINVAL, "mount %s", "/proc")
	if e.Kind != InvalidValue {
		t.Errorf("Kind = %v, want InvalidValue", e.Kind)
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil, ...) should return nil")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := Wrap(syscall.ENOSPC, "loop mount")
	b, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != want.Kind || got.Errno != want.Errno || got.Message != want.Message {
		t.Errorf("Decode(Encode(x)) = %+v, want %+v", got, want)
	}
}

func TestEncodeNilIsZero(t *testing.T) {
	b, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("Decode(Encode(nil)) should be zero, got %+v", got)
	}
}
