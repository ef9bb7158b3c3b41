package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reshard/internal/config"
	"reshard/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("RESHARD_LOG_LEVEL", "")
	t.Setenv("RESHARD_STATE_DIR", "")

	cfg := testsupport.NewConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

// newRoot creates an empty root directory populated with relPaths.
func (e *cliTestEnv) newRoot(t *testing.T, name string, relPaths ...string) string {
	t.Helper()
	root := filepath.Join(e.baseDir, name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}
	testsupport.WriteTree(t, root, relPaths...)
	return root
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create config: %v", err)
	}
	defer file.Close()
	if err := cfg.Encode(file); err != nil {
		t.Fatalf("encode config: %v", err)
	}
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}
