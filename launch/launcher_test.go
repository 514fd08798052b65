package launch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStartRejectsSymlinkEscapeBeforeAnyNamespace(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Fatal(err)
	}

	env := &TaskEnv{
		Command: "/bin/true",
		Root:    root,
		BindMap: []BindMap{{Source: "/etc", Dest: "escape"}},
	}

	l := &Launcher{}
	_, err := l.Start(env)
	if err == nil {
		t.Fatal("Start() should reject a bind map that escapes root via symlink")
	}
}
