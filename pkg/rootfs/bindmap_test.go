package rootfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckNoEscapeAllowsInsideDest(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "mnt", "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := checkNoEscape(root, "mnt/data"); err != nil {
		t.Errorf("checkNoEscape() = %v, want nil", err)
	}
}

func TestCheckNoEscapeRejectsSymlinkOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Fatal(err)
	}
	if err := checkNoEscape(root, "escape"); err == nil {
		t.Fatal("checkNoEscape should reject a dest resolving outside root")
	}
}

func TestCheckNoEscapeAllowsNotYetCreatedDest(t *testing.T) {
	root := t.TempDir()
	if err := checkNoEscape(root, "not/yet/created"); err != nil {
		t.Errorf("checkNoEscape() = %v, want nil for not-yet-existing dest", err)
	}
}

func TestValidateBindMapRejectsEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Fatal(err)
	}
	err := ValidateBindMap(root, []BindEntry{{Source: "/etc", Dest: "escape"}})
	if err == nil {
		t.Fatal("ValidateBindMap should reject a dest resolving outside root")
	}
}

func TestValidateBindMapAllowsOrdinaryDest(t *testing.T) {
	root := t.TempDir()
	err := ValidateBindMap(root, []BindEntry{{Source: "/etc", Dest: "etc"}})
	if err != nil {
		t.Errorf("ValidateBindMap() = %v, want nil", err)
	}
}

func TestValidateBindMapSkipsSharedRoot(t *testing.T) {
	if err := ValidateBindMap("/", []BindEntry{{Source: "/etc", Dest: "../../etc"}}); err != nil {
		t.Errorf("ValidateBindMap(\"/\", ...) = %v, want nil (no rootfs isolation to escape)", err)
	}
}

func TestMkdirTargetFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "sub", "file")
	if err := mkdirTarget(target, true); err != nil {
		t.Fatalf("mkdirTarget: %v", err)
	}
	fi, err := os.Lstat(target)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if fi.IsDir() {
		t.Errorf("expected file at %s, got directory", target)
	}
}

func TestMkdirTargetDir(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b")
	if err := mkdirTarget(target, false); err != nil {
		t.Fatalf("mkdirTarget: %v", err)
	}
	fi, err := os.Stat(target)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !fi.IsDir() {
		t.Errorf("expected directory at %s", target)
	}
}
