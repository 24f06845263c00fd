package tts

import "fmt"

// kittenVoices 按模型 speaker id 顺序排列。
var kittenVoices = [...]string{
	"expr-voice-2-m",
	"expr-voice-2-f",
	"expr-voice-3-m",
	"expr-voice-3-f",
	"expr-voice-4-m",
	"expr-voice-4-f",
	"expr-voice-5-m",
	"expr-voice-5-f",
}

// Voices 返回 Kitten 模型内置音色列表的副本。
func Voices() []string {
	out := make([]string, len(kittenVoices))
	copy(out, kittenVoices[:])
	return out
}

// IsValidVoice 判断 voice 是否为内置音色。
func IsValidVoice(voice string) bool {
	_, err := SpeakerID(voice)
	return err == nil
}

// SpeakerID 返回音色对应的模型 speaker id。
func SpeakerID(voice string) (int, error) {
	for i, v := range kittenVoices {
		if v == voice {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidVoice, voice)
}
