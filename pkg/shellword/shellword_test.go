package shellword

import (
	"reflect"
	"testing"
)

func TestSplitBasic(t *testing.T) {
	got, err := Split("/bin/sh -c 'echo hello world'")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []string{"/bin/sh", "-c", "echo hello world"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %#v, want %#v", got, want)
	}
}

func TestSplitEmpty(t *testing.T) {
	got, err := Split("   ")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Split(whitespace) = %#v, want empty", got)
	}
}

func TestSplitNoCommandSubstitution(t *testing.T) {
	got, err := Split("echo $(whoami)")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []string{"echo", "$(whoami)"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %#v, want %#v (no substitution performed)", got, want)
	}
}
