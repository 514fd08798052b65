package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "launchd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesTmpDirDefault(t *testing.T) {
	path := writeTempConfig(t, "network:\n  enabled: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Container.TmpDir != defaultTmpDir {
		t.Errorf("Container.TmpDir = %q, want default %q", cfg.Container.TmpDir, defaultTmpDir)
	}
	if !cfg.Network.Enabled {
		t.Error("Network.Enabled should be true")
	}
}

func TestLoadHonorsExplicitTmpDir(t *testing.T) {
	path := writeTempConfig(t, "container:\n  tmp_dir: /srv/launchd/tmp\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Container.TmpDir != "/srv/launchd/tmp" {
		t.Errorf("Container.TmpDir = %q, want /srv/launchd/tmp", cfg.Container.TmpDir)
	}
}

func TestGetKnownKeys(t *testing.T) {
	cfg := &Config{Network: Network{Enabled: true, Debug: false}, Log: Log{Verbose: true}}
	cases := map[string]string{
		"network.enabled": "true",
		"network.debug":   "false",
		"log.verbose":     "true",
	}
	for key, want := range cases {
		got, ok := cfg.Get(key)
		if !ok {
			t.Errorf("Get(%q) not found", key)
			continue
		}
		if got != want {
			t.Errorf("Get(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestGetUnknownKey(t *testing.T) {
	cfg := &Config{}
	if _, ok := cfg.Get("container.unknown"); ok {
		t.Error("Get() on unknown key should report ok=false")
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey("network.enabled"); err != nil {
		t.Errorf("ValidateKey(network.enabled) = %v, want nil", err)
	}
	if err := ValidateKey("bogus"); err == nil {
		t.Error("ValidateKey(bogus) should return an error")
	}
}
