package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iabetor/kitten-say/internal/config"
	"github.com/iabetor/kitten-say/internal/tts"
)

// writeConfig 写入一个指向空模型目录的配置文件，避免读取用户配置。
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "model:\n  dir: " + filepath.Join(dir, "no-model") + "\nlog:\n  level: error\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecute_ListVoices(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--config", writeConfig(t), "-l", "-v", "ignored"}, strings.NewReader(""), &stdout, &stderr)

	if code != 0 {
		t.Fatalf("exit code: got %d, stderr=%q", code, stderr.String())
	}
	out := stdout.String()
	if !strings.HasPrefix(out, "Available voices:\n") {
		t.Errorf("stdout: %q", out)
	}
	if !strings.Contains(out, "  expr-voice-2-f (default)") {
		t.Errorf("default voice not marked: %q", out)
	}
}

func TestExecute_InvalidVoice(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--config", writeConfig(t), "-v", "expr-voice-9-q", "hi"}, strings.NewReader(""), &stdout, &stderr)

	if code != 1 {
		t.Fatalf("exit code: got %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "invalid choice") {
		t.Errorf("stderr: %q", stderr.String())
	}
}

func TestExecute_NoText(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--config", writeConfig(t)}, strings.NewReader(""), &stdout, &stderr)

	if code != 1 {
		t.Fatalf("exit code: got %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "no text provided") {
		t.Errorf("stderr: %q", stderr.String())
	}
}

func TestExecute_MissingModelIsSynthesisError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := filepath.Join(t.TempDir(), "out.wav")
	code := execute(context.Background(), []string{"--config", writeConfig(t), "-o", out, "hello"}, strings.NewReader(""), &stdout, &stderr)

	if code != 1 {
		t.Fatalf("exit code: got %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "error generating speech") {
		t.Errorf("stderr: %q", stderr.String())
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output file should be written")
	}
}

func TestExecute_MissingExplicitConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "-l"}, strings.NewReader(""), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code: got %d, want 1", code)
	}
}

func TestExecute_TooManyArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--config", writeConfig(t), "one", "two"}, strings.NewReader(""), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code: got %d, want 1", code)
	}
}

func TestExecute_NegativeSpeed(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--config", writeConfig(t), "--speed=-1", "hi"}, strings.NewReader(""), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code: got %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "--speed") {
		t.Errorf("stderr: %q", stderr.String())
	}
}

func TestExecute_UnknownDefaultVoiceInConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "voice:\n  default: expr-voice-9-x\nlog:\n  level: error\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--config", path, "-l"}, strings.NewReader(""), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code: got %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "voice.default") {
		t.Errorf("stderr: %q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("no voice list should be printed: %q", stdout.String())
	}
}

func TestExecute_RejectsNonWAVOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := filepath.Join(t.TempDir(), "out.flac")
	code := execute(context.Background(), []string{"--config", writeConfig(t), "-o", out, "hello"}, strings.NewReader(""), &stdout, &stderr)

	if code != 1 {
		t.Fatalf("exit code: got %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "only .wav") {
		t.Errorf("stderr: %q", stderr.String())
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output file should be written")
	}
}

func TestNewEngine_VerboseEnablesModelDebug(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Dir = t.TempDir()

	for _, debug := range []bool{false, true} {
		engine, err := newEngine(cfg, true, debug)
		if err != nil {
			t.Fatalf("newEngine failed: %v", err)
		}
		kitten, ok := engine.(*tts.KittenEngine)
		if !ok {
			t.Fatalf("expected *tts.KittenEngine without cache, got %T", engine)
		}
		if kitten.Config().Debug != debug {
			t.Errorf("Debug: got %v, want %v", kitten.Config().Debug, debug)
		}
		if kitten.Config().ModelDir != cfg.Model.Dir {
			t.Errorf("ModelDir: got %q", kitten.Config().ModelDir)
		}
		engine.Close()
	}
}
