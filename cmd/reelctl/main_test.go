package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelcms/pkg/models"
)

type cliTestEnv struct {
	base       string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "reelcms.toml")
	body := fmt.Sprintf(`[paths]
public_dir = %q
data_dir = %q

[media]
ffmpeg = "definitely-not-ffmpeg"

[log]
level = "error"
`, base, filepath.Join(base, "data"))
	if err := os.WriteFile(configPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{base: base, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
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

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}

func listWorks(t *testing.T, env *cliTestEnv) []models.Work {
	t.Helper()
	out, _, err := runCLI(t, []string{"works", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("works list: %v", err)
	}
	var works []models.Work
	if err := json.Unmarshal([]byte(out), &works); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	return works
}

func TestWorksLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"works", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("works list: %v", err)
	}
	requireContains(t, out, "No works")

	if _, _, err := runCLI(t, []string{"works", "set", `{"slug":"a","title":"Alpha","published":true}`}, env.configPath); err != nil {
		t.Fatalf("works set a: %v", err)
	}
	if _, _, err := runCLI(t, []string{"works", "set", `{"slug":"b","title":"Beta"}`}, env.configPath); err != nil {
		t.Fatalf("works set b: %v", err)
	}
	if _, _, err := runCLI(t, []string{"works", "set", `{"slug":"../x","title":"Bad"}`}, env.configPath); err == nil {
		t.Fatal("invalid slug should be rejected")
	}

	out, _, err = runCLI(t, []string{"works", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("works list: %v", err)
	}
	requireContains(t, out, "Alpha")
	requireContains(t, out, "unpublished")

	out, _, err = runCLI(t, []string{"works", "publish", "b", "missing"}, env.configPath)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	requireContains(t, out, "published 1 of 2")

	if _, _, err := runCLI(t, []string{"works", "schedule", "a", "--at", "2999-01-01T00:00:00Z"}, env.configPath); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, _, err := runCLI(t, []string{"works", "schedule", "a", "--at", "whenever"}, env.configPath); err == nil {
		t.Fatal("unparseable schedule should fail")
	}

	works := listWorks(t, env)
	if len(works) != 2 {
		t.Fatalf("expected 2 works, got %d", len(works))
	}
	for _, w := range works {
		switch w.Slug {
		case "a":
			if w.Published != models.Unpublished || w.ScheduledAt == nil || !w.ScheduledAt.Valid() {
				t.Fatalf("a should be scheduled: %+v", w)
			}
		case "b":
			if w.Published != models.Published {
				t.Fatalf("b should be published: %+v", w)
			}
		}
	}

	if _, _, err := runCLI(t, []string{"works", "rm", "a", "a"}, env.configPath); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if works := listWorks(t, env); len(works) != 1 || works[0].Slug != "b" {
		t.Fatalf("after rm: %+v", works)
	}
}

func TestExportImportCSVRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"works", "set", `{"slug":"clip","title":"Clip","kind":"video","videoSrc":"/movies/clip.mp4","cats":["music-videos","commercials"]}`}, env.configPath); err != nil {
		t.Fatalf("works set: %v", err)
	}
	target := filepath.Join(env.base, "export", "works.csv")
	out, _, err := runCLI(t, []string{"export", "--format", "csv", "--out", target}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, "exported 1 works")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, string(data), "slug,title,kind,published")
	requireContains(t, string(data), "clip,Clip,video,false")

	if _, _, err := runCLI(t, []string{"works", "rm", "clip"}, env.configPath); err != nil {
		t.Fatalf("rm: %v", err)
	}
	out, _, err = runCLI(t, []string{"import", "csv", target}, env.configPath)
	if err != nil {
		t.Fatalf("import csv: %v", err)
	}
	requireContains(t, out, "upserted 1 works")

	works := listWorks(t, env)
	if len(works) != 1 {
		t.Fatalf("expected 1 work, got %d", len(works))
	}
	w := works[0]
	if w.VideoSrc != "/movies/clip.mp4" || !w.Cats.Has("commercials") || w.Published != models.Unpublished {
		t.Fatalf("round trip lost fields: %+v", w)
	}
}

func TestImportMoviesAndSweep(t *testing.T) {
	env := setupCLITestEnv(t)
	movies := filepath.Join(env.base, "movies")
	if err := os.MkdirAll(movies, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"one.mp4", "two.mov", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(movies, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, _, err := runCLI(t, []string{"import", "movies", "--mode", "merge", "--unpublished"}, env.configPath)
	if err != nil {
		t.Fatalf("import movies: %v", err)
	}
	requireContains(t, out, "manifest now has 2 works")
	for _, w := range listWorks(t, env) {
		if w.Published != models.Unpublished {
			t.Fatalf("%s should be unpublished", w.Slug)
		}
	}

	if _, _, err := runCLI(t, []string{"import", "movies", "--mode", "append"}, env.configPath); err == nil {
		t.Fatal("unknown mode should fail")
	}

	out, _, err = runCLI(t, []string{"sweep"}, env.configPath)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	requireContains(t, out, "No scheduled works are due")
}

func TestMediaCommandsWithoutFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"media", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("media status: %v", err)
	}
	requireContains(t, out, "unavailable")

	if _, _, err := runCLI(t, []string{"media", "normalize"}, env.configPath); err == nil || !strings.Contains(err.Error(), "ffmpeg") {
		t.Fatalf("normalize without ffmpeg: %v", err)
	}
}

func TestConfigInitAndHashPassword(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conf", "reelcms.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}

	out, _, err = runCLI(t, []string{"hash-password", "hunter2"}, "")
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "$2") {
		t.Fatalf("expected a bcrypt hash, got %q", out)
	}
}
