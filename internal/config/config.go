package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModelID 是内置的 KittenTTS 模型标识。
const DefaultModelID = "KittenML/kitten-tts-nano-0.1"

// DefaultSampleRate 是 Kitten 模型输出的固定采样率。
const DefaultSampleRate = 24000

// DefaultVoice 是未指定 --voice 时使用的音色。
const DefaultVoice = "expr-voice-2-f"

// Config 是 kitten-say 的顶层配置结构。
type Config struct {
	Model ModelConfig `yaml:"model"`
	Voice VoiceConfig `yaml:"voice"`
	Audio AudioConfig `yaml:"audio"`
	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

// ModelConfig 语音合成模型配置。
type ModelConfig struct {
	// ID 仅用于展示和缓存键，模型文件从 Dir 加载。
	ID string `yaml:"id"`
	// Dir 包含 model.fp16.onnx、voices.bin、tokens.txt 和 espeak-ng-data。
	Dir        string `yaml:"dir"`
	NumThreads int    `yaml:"num_threads"`
	Provider   string `yaml:"provider"`
	// MaxChunkChars 是长文本切分后每段的最大字符数。
	MaxChunkChars int `yaml:"max_chunk_chars"`
}

// VoiceConfig 音色配置。
type VoiceConfig struct {
	Default string  `yaml:"default"`
	Speed   float64 `yaml:"speed"`
}

// AudioConfig 音频输出配置。
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

// CacheConfig 合成结果缓存配置。
type CacheConfig struct {
	Dir string `yaml:"dir"`
	// MaxSizeMB 为 0 时禁用缓存。
	MaxSizeMB int64 `yaml:"max_size_mb"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// DefaultPath 返回默认配置文件路径 ~/.config/kitten-say/config.yaml。
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "kitten-say.yaml"
	}
	return filepath.Join(dir, "kitten-say", "config.yaml")
}

// Default 返回全部使用默认值的配置。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置文件 %s 无效: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault 在默认路径的配置文件不存在时返回默认配置。
// explicit 为 true 表示路径由用户指定，此时文件缺失视为错误。
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg, err := Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate 检查填充默认值之后的配置。
func (c *Config) Validate() error {
	if c.Voice.Speed <= 0 {
		return fmt.Errorf("voice.speed 必须大于 0，当前为 %v", c.Voice.Speed)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate 必须大于 0，当前为 %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("audio.channels 仅支持单声道，当前为 %d", c.Audio.Channels)
	}
	if c.Model.MaxChunkChars < 0 {
		return fmt.Errorf("model.max_chunk_chars 不能为负数")
	}
	if c.Cache.MaxSizeMB < 0 {
		return fmt.Errorf("cache.max_size_mb 不能为负数")
	}
	return nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Model.ID == "" {
		cfg.Model.ID = DefaultModelID
	}
	if cfg.Model.Dir == "" {
		cfg.Model.Dir = dataPath("models", "kitten-nano-en-v0_1-fp16")
	}
	if cfg.Model.NumThreads == 0 {
		cfg.Model.NumThreads = 2
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "cpu"
	}
	if cfg.Model.MaxChunkChars == 0 {
		cfg.Model.MaxChunkChars = 400
	}
	if cfg.Voice.Default == "" {
		cfg.Voice.Default = DefaultVoice
	}
	if cfg.Voice.Speed == 0 {
		cfg.Voice.Speed = 1.0
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = dataPath("cache")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}

	cfg.Model.Dir = expandHome(cfg.Model.Dir)
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.Voice.Default = strings.TrimSpace(cfg.Voice.Default)
}

// dataPath 返回 ~/.kitten-say 下的路径，取不到主目录时退回当前目录。
func dataPath(elem ...string) string {
	home, _ := os.UserHomeDir()
	base := "./.kitten-say"
	if home != "" {
		base = filepath.Join(home, ".kitten-say")
	}
	return filepath.Join(append([]string{base}, elem...)...)
}

// expandHome 把 ~/ 前缀替换为用户主目录，Go 不会自动展开。
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return path
	}
	return home + path[1:]
}
