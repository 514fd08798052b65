package cred

import (
	"os/user"
	"testing"
)

func TestResolveCurrentUserByID(t *testing.T) {
	me, err := user.Current()
	if err != nil {
		t.Skipf("os/user not available in this environment: %v", err)
	}
	r, err := Resolve(me.Uid, "")
	if err != nil {
		t.Fatalf("Resolve(%s, \"\"): %v", me.Uid, err)
	}
	wantUID, _ := user.LookupId(me.Uid)
	if wantUID == nil {
		t.Fatal("user.LookupId returned nil")
	}
	if r.UID == 0 && me.Uid != "0" {
		t.Errorf("Resolve(%s) gave UID 0 unexpectedly", me.Uid)
	}
}

func TestResolveUnknownUser(t *testing.T) {
	if _, err := Resolve("no-such-user-launchd-test", ""); err == nil {
		t.Error("Resolve(unknown user) should error")
	}
}

func TestResolveUnknownGroup(t *testing.T) {
	me, err := user.Current()
	if err != nil {
		t.Skipf("os/user not available in this environment: %v", err)
	}
	if _, err := Resolve(me.Uid, "no-such-group-launchd-test"); err == nil {
		t.Error("Resolve(known user, unknown group) should error")
	}
}
