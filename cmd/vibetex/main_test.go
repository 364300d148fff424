package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/vibetex/internal/config"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after positional are moved first",
			args:     []string{"paper.tex", "-o", "out.pdf"},
			expected: []string{"-o", "out.pdf", "paper.tex"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-o", "out.pdf", "paper.tex"},
			expected: []string{"-o", "out.pdf", "paper.tex"},
		},
		{
			name:     "positional only returns unchanged",
			args:     []string{"Add an abstract"},
			expected: []string{"Add an abstract"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"make", "it", "bold", "-diff"},
			expected: []string{"-diff", "make", "it", "bold"},
		},
		{
			name:     "single dash is positional",
			args:     []string{"-", "x"},
			expected: []string{"-", "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDefaultOutputPath(t *testing.T) {
	tests := map[string]string{
		"paper.tex":           "paper.pdf",
		"/tmp/thesis/ch1.tex": "/tmp/thesis/ch1.pdf",
		"noext":               "noext.pdf",
	}
	for in, want := range tests {
		if got := defaultOutputPath(in); got != want {
			t.Errorf("defaultOutputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompletionInput(t *testing.T) {
	triggers := []string{"\\"}
	if got := completionInput("sec", triggers); got != "\\sec" {
		t.Errorf("got %q", got)
	}
	if got := completionInput("\\sec", triggers); got != "\\sec" {
		t.Errorf("got %q", got)
	}
}

func TestReadAttachment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("remember"), 0600); err != nil {
		t.Fatal(err)
	}
	f, err := readAttachment(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "notes.txt" || string(f.Data) != "remember" || f.ContentType == "" {
		t.Errorf("unexpected file: %+v", f)
	}
	if _, err := readAttachment(filepath.Join(dir, "missing.md")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8090
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
backend:
  base_url: "http://compiler:8000/api"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 || cfg.Backend.BaseURL != "http://compiler:8000/api" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigOrDefaults_missingFile(t *testing.T) {
	cfg := loadConfigOrDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Backend.BaseURL == "" || cfg.Completion.MaxResults == 0 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestInitializeComponents(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{DatabasePath: filepath.Join(dir, "compiles.db")}}
	config.ApplyDefaults(cfg)

	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Provider.Table().Len() == 0 {
		t.Error("completion table should be loaded")
	}
	s := c.Sessions.Create("\\documentclass{article}")
	if _, err := c.Sessions.Get(s.ID); err != nil {
		t.Errorf("session lookup: %v", err)
	}

	cfg.Session.Sequencing = "random"
	if _, err := initializeComponents(cfg, zap.NewNop()); err == nil {
		t.Error("expected error for unknown sequencing policy")
	}
}
