package cli

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestInit_WritesSampleConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("init execute: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "oasrouter configuration") {
		t.Fatalf("unexpected config contents: %s", s)
	}
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected error for existing file without --force")
	}
	if _, ok := err.(usageError); !ok {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}
}


func TestInit_SampleConfigDecodes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	// Uncommenting every option must produce a config the loader accepts.
	option := regexp.MustCompile(`^# ([A-Za-z]+):( .*)?$`)
	known := map[string]bool{}
	for _, k := range []string{"input", "fetchTimeout", "fetchRetries", "includeTags", "excludeTags", "schemas", "unbound", "addr", "router",
		"credentials", "metrics", "trace", "strict", "out", "package", "module", "dryRun", "force", "verbose"} {
		known[k] = true
	}
	var b strings.Builder
	for _, line := range strings.Split(sampleConfigYAML, "\n") {
		if m := option.FindStringSubmatch(line); m != nil && known[m[1]] {
			b.WriteString(strings.TrimPrefix(line, "# ") + "\n")
		} else if strings.HasPrefix(line, "#   ") {
			b.WriteString(strings.TrimPrefix(line, "# ") + "\n")
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := defaultConfig()
	if err := applyConfigFromFile(&cfg, path); err != nil {
		t.Fatalf("decode sample:\n%s\n%v", b.String(), err)
	}
	if cfg.Input != "./openapi.yaml" || cfg.Router != "gin" || cfg.Out != "./internal/api" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if _, ok := cfg.Credentials["Bearer"]["Jane"]; !ok {
		t.Fatalf("credentials not decoded: %+v", cfg.Credentials)
	}
	if cfg.FetchTimeout != 10*time.Second || cfg.FetchRetries != 3 {
		t.Fatalf("fetch settings: %v, %d", cfg.FetchTimeout, cfg.FetchRetries)
	}
	if len(cfg.IncludeTags) != 2 {
		t.Fatalf("include tags: %v", cfg.IncludeTags)
	}
}
