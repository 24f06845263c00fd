package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// quantizedTone 生成可以无损通过 16-bit 量化的样本。
func quantizedTone(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		k := int16(math.Sin(float64(i)/8) * 20000)
		samples[i] = float32(k) / math.MaxInt16
	}
	return samples
}

func TestWriteWAV_Roundtrip(t *testing.T) {
	original := NewBuffer(quantizedTone(2400), 24000)
	path := filepath.Join(t.TempDir(), "hello.wav")

	if err := WriteWAV(path, original); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if got.SampleRate != 24000 {
		t.Errorf("sample rate: got %d, want 24000", got.SampleRate)
	}
	if len(got.Samples) != len(original.Samples) {
		t.Fatalf("length mismatch: got %d, want %d", len(got.Samples), len(original.Samples))
	}
	for i := range original.Samples {
		if got.Samples[i] != original.Samples[i] {
			t.Fatalf("sample %d: got %f, want %f", i, got.Samples[i], original.Samples[i])
		}
	}
}

func TestWriteWAV_ArbitrarySamplesWithinQuantization(t *testing.T) {
	original := NewBuffer([]float32{0.123456, -0.987654, 0.000001, 0.5}, 24000)
	path := filepath.Join(t.TempDir(), "q.wav")

	if err := WriteWAV(path, original); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}

	const step = 1.0 / math.MaxInt16
	for i := range original.Samples {
		if d := math.Abs(float64(got.Samples[i] - original.Samples[i])); d > step {
			t.Errorf("sample %d differs by %g", i, d)
		}
	}
}

func TestWriteWAV_BadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.wav")
	err := WriteWAV(path, NewBuffer([]float32{0}, 24000))
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("no file should be left behind")
	}
}

func TestWriteWAVAtomic_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	if err := WriteWAVAtomic(filepath.Join(dir, "a.wav"), NewBuffer([]float32{0.1}, 24000)); err != nil {
		t.Fatalf("WriteWAVAtomic failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.wav" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestWriteWAV_WritesThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.wav")
	link := filepath.Join(dir, "link.wav")
	if err := os.WriteFile(target, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	if err := WriteWAV(link, NewBuffer(quantizedTone(100), 24000)); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	info, err := os.Lstat(link)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("symlink should not be replaced by a regular file")
	}
	got, err := ReadWAV(target)
	if err != nil {
		t.Fatalf("target should hold the audio: %v", err)
	}
	if len(got.Samples) != 100 {
		t.Errorf("samples: got %d, want 100", len(got.Samples))
	}
}

func TestWriteWAV_TruncatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WriteWAV(path, NewBuffer(quantizedTone(4800), 24000)); err != nil {
		t.Fatal(err)
	}
	if err := WriteWAV(path, NewBuffer(quantizedTone(10), 24000)); err != nil {
		t.Fatal(err)
	}
	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if len(got.Samples) != 10 {
		t.Errorf("samples: got %d, want 10", len(got.Samples))
	}
}

func TestSeekBuffer_RewritesHeader(t *testing.T) {
	var b seekBuffer
	b.Write([]byte("abcdef"))
	if _, err := b.Seek(1, 0); err != nil {
		t.Fatal(err)
	}
	b.Write([]byte("XY"))
	if pos, _ := b.Seek(0, 2); pos != 6 {
		t.Errorf("end position: got %d, want 6", pos)
	}
	if string(b.buf) != "aXYdef" {
		t.Errorf("got %q", b.buf)
	}
	if _, err := b.Seek(-1, 0); err == nil {
		t.Error("negative seek should fail")
	}
}

func TestReadWAV_NotWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.wav")
	if err := os.WriteFile(path, []byte("definitely not a riff file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWAV(path); err == nil {
		t.Fatal("expected error for invalid WAV")
	}
}

func TestBuffer_Duration(t *testing.T) {
	b := NewBuffer(make([]float32, 12000), 24000)
	if b.Duration() != 500*time.Millisecond {
		t.Errorf("Duration: got %v", b.Duration())
	}
	var nilBuf *Buffer
	if !nilBuf.Empty() || nilBuf.Duration() != 0 {
		t.Error("nil buffer should be empty with zero duration")
	}
}
