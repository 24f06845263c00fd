package tts

import (
	"errors"
	"testing"
)

func TestVoices_OrderMatchesSpeakerID(t *testing.T) {
	voices := Voices()
	if len(voices) != 8 {
		t.Fatalf("expected 8 voices, got %d", len(voices))
	}
	for i, v := range voices {
		sid, err := SpeakerID(v)
		if err != nil {
			t.Fatalf("SpeakerID(%q) failed: %v", v, err)
		}
		if sid != i {
			t.Errorf("SpeakerID(%q) = %d, want %d", v, sid, i)
		}
	}
	if voices[1] != "expr-voice-2-f" {
		t.Errorf("voice 1: got %q", voices[1])
	}
}

func TestVoices_ReturnsCopy(t *testing.T) {
	v := Voices()
	v[0] = "mutated"
	if Voices()[0] != "expr-voice-2-m" {
		t.Fatal("Voices should return a copy")
	}
}

func TestSpeakerID_Invalid(t *testing.T) {
	_, err := SpeakerID("expr-voice-9-x")
	if !errors.Is(err, ErrInvalidVoice) {
		t.Fatalf("expected ErrInvalidVoice, got %v", err)
	}
	if IsValidVoice("") {
		t.Error("empty voice should be invalid")
	}
	if !IsValidVoice("expr-voice-5-f") {
		t.Error("expr-voice-5-f should be valid")
	}
}

func TestSynthesisError(t *testing.T) {
	tests := []struct {
		name string
		err  *SynthesisError
		want string
	}{
		{
			name: "with cause",
			err:  newSynthesisError("kitten", "expr-voice-2-f", "模型未生成音频", ErrSynthesisFailed),
			want: "kitten: 模型未生成音频 (voice=expr-voice-2-f): speech synthesis failed",
		},
		{
			name: "without voice or cause",
			err:  &SynthesisError{Engine: "kitten", Message: "boom"},
			want: "kitten: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	wrapped := newSynthesisError("kitten", "", "加载模型失败", ErrModelNotFound)
	if !errors.Is(wrapped, ErrModelNotFound) {
		t.Error("SynthesisError should unwrap to its cause")
	}
}
