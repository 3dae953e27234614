package project_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"minimize/internal/project"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, project.ConfigName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    project.Config
		wantErr bool
	}{
		{
			name: "empty",
			body: "",
			want: project.Config{},
		},
		{
			name: "all_settings",
			body: `entry = "start"
step_limit = 1000

[trace]
level = "phase"
output = "-"
format = "zap"

[cache]
enabled = true
dir = "/tmp/minimize"
`,
			want: project.Config{
				Entry:     "start",
				StepLimit: 1000,
				Trace:     project.TraceConfig{Level: "phase", Output: "-", Format: "zap"},
				Cache:     project.CacheConfig{Enabled: true, Dir: "/tmp/minimize"},
			},
		},
		{
			name:    "unknown_key",
			body:    "entyr = \"main\"\n",
			wantErr: true,
		},
		{
			name:    "empty_entry",
			body:    "entry = \"  \"\n",
			wantErr: true,
		},
		{
			name:    "bad_syntax",
			body:    "entry = \n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			got, err := project.LoadConfig(path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if got != tt.want {
				t.Fatalf("config = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadConfigReportsUnknownKeys(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[trace]\ncolour = \"on\"\n")
	_, err := project.LoadConfig(path)
	if !errors.Is(err, project.ErrUnknownKeys) {
		t.Fatalf("err = %v, want ErrUnknownKeys", err)
	}
}

func TestFindConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "entry = \"main\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, path, ok, err := project.LoadNearestConfig(nested)
	if err != nil || !ok {
		t.Fatalf("LoadNearestConfig: ok=%v err=%v", ok, err)
	}
	if path != want || cfg.Entry != "main" {
		t.Fatalf("found %s with %+v", path, cfg)
	}
}

func TestCombineIsOrderSensitive(t *testing.T) {
	base := project.HashBytes([]byte("crate"))
	if project.Combine(base, []byte("ab"), []byte("c")) == project.Combine(base, []byte("a"), []byte("bc")) {
		t.Fatal("different part splits hashed equal")
	}
	if project.Combine(base, []byte("main")) != project.Combine(base, []byte("main")) {
		t.Fatal("Combine is not deterministic")
	}
}
