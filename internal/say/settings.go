package say

import (
	"fmt"

	"github.com/iabetor/kitten-say/internal/config"
	"github.com/iabetor/kitten-say/internal/tts"
)

// Settings 是编排器使用的只读配置，创建后不再修改。
type Settings struct {
	voices       []string
	defaultVoice string
	modelID      string
	sampleRate   int
	channels     int
	speed        float64
}

// NewSettings 构造 Settings，voices 会被复制。
// defaultVoice 必须在 voices 中，列出音色时才能恰好标出一个默认值。
func NewSettings(voices []string, defaultVoice, modelID string, sampleRate, channels int, speed float64) (Settings, error) {
	v := make([]string, len(voices))
	copy(v, voices)
	if speed <= 0 {
		speed = 1.0
	}
	if channels <= 0 {
		channels = 1
	}
	s := Settings{
		voices:       v,
		defaultVoice: defaultVoice,
		modelID:      modelID,
		sampleRate:   sampleRate,
		channels:     channels,
		speed:        speed,
	}
	if !s.HasVoice(defaultVoice) {
		return Settings{}, fmt.Errorf("默认音色 %q 不在可用音色中 (%v)", defaultVoice, v)
	}
	return s, nil
}

// SettingsFromConfig 用 Kitten 内置音色列表和配置文件构造 Settings。
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	s, err := NewSettings(tts.Voices(), cfg.Voice.Default, cfg.Model.ID, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Voice.Speed)
	if err != nil {
		return Settings{}, fmt.Errorf("配置 voice.default 无效: %w", err)
	}
	return s, nil
}

// Voices 返回音色列表的副本。
func (s Settings) Voices() []string {
	out := make([]string, len(s.voices))
	copy(out, s.voices)
	return out
}

func (s Settings) DefaultVoice() string { return s.defaultVoice }
func (s Settings) ModelID() string      { return s.modelID }
func (s Settings) SampleRate() int      { return s.sampleRate }
func (s Settings) Channels() int        { return s.channels }
func (s Settings) Speed() float64       { return s.speed }

// HasVoice 判断 voice 是否在允许列表中。
func (s Settings) HasVoice(voice string) bool {
	for _, v := range s.voices {
		if v == voice {
			return true
		}
	}
	return false
}
