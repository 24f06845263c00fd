package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/iabetor/kitten-say/internal/audio"
	"github.com/iabetor/kitten-say/internal/logger"
)

const kittenEngineName = "kitten"

// kittenModelFiles 按优先级排列，sherpa-onnx 发布的 nano 模型为 fp16 版本。
var kittenModelFiles = []string{"model.fp16.onnx", "model.onnx"}

// KittenConfig 描述 Kitten 模型目录和推理参数。
type KittenConfig struct {
	// ModelDir 包含模型、voices.bin、tokens.txt 和 espeak-ng-data 目录。
	ModelDir   string
	NumThreads int
	Provider   string
	// SampleRate 在模型未报告采样率时使用。
	SampleRate int
	// MaxChunkChars 是单段最大字符数，长文本按句切分后逐段合成，0 表示默认值。
	MaxChunkChars int
	Debug         bool
}

// KittenEngine 使用 sherpa-onnx OfflineTts 运行 KittenTTS 模型。
// 模型在第一次合成时加载，之后在进程内复用。
type KittenEngine struct {
	cfg KittenConfig

	mu     sync.Mutex
	impl   *sherpa.OfflineTts
	busy   int
	closed bool
}

// 确保实现 Engine 接口
var _ Engine = (*KittenEngine)(nil)

// NewKittenEngine 创建 Kitten 引擎，不会立即加载模型。
func NewKittenEngine(cfg KittenConfig) *KittenEngine {
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 2
	}
	if cfg.Provider == "" {
		cfg.Provider = "cpu"
	}
	return &KittenEngine{cfg: cfg}
}

// Config 返回填充默认值后的引擎配置。
func (e *KittenEngine) Config() KittenConfig {
	return e.cfg
}

// kittenPaths 是解析后的模型文件路径。
type kittenPaths struct {
	model, voices, tokens, dataDir string
}

// resolveKittenPaths 检查模型目录完整性。
func resolveKittenPaths(dir string) (kittenPaths, error) {
	var p kittenPaths
	for _, name := range kittenModelFiles {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			p.model = candidate
			break
		}
	}
	if p.model == "" {
		return p, fmt.Errorf("%w: %s 中没有 %s", ErrModelNotFound, dir, strings.Join(kittenModelFiles, " 或 "))
	}

	p.voices = filepath.Join(dir, "voices.bin")
	p.tokens = filepath.Join(dir, "tokens.txt")
	p.dataDir = filepath.Join(dir, "espeak-ng-data")
	for _, required := range []string{p.voices, p.tokens, p.dataDir} {
		if _, err := os.Stat(required); err != nil {
			return p, fmt.Errorf("%w: 缺少 %s", ErrModelNotFound, required)
		}
	}
	return p, nil
}

// loadLocked 加载模型，调用方需持有锁。
func (e *KittenEngine) loadLocked() (*sherpa.OfflineTts, error) {
	if e.impl != nil {
		return e.impl, nil
	}

	paths, err := resolveKittenPaths(e.cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	config := sherpa.OfflineTtsConfig{}
	config.Model.Kitten.Model = paths.model
	config.Model.Kitten.Voices = paths.voices
	config.Model.Kitten.Tokens = paths.tokens
	config.Model.Kitten.DataDir = paths.dataDir
	config.Model.Kitten.LengthScale = 1.0
	config.Model.NumThreads = e.cfg.NumThreads
	config.Model.Provider = e.cfg.Provider
	if e.cfg.Debug {
		config.Model.Debug = 1
	}
	config.MaxNumSentences = 1

	start := time.Now()
	impl := sherpa.NewOfflineTts(&config)
	if impl == nil {
		return nil, fmt.Errorf("创建 OfflineTts 失败，模型目录: %s", e.cfg.ModelDir)
	}
	logger.Infof("[tts] kitten: 模型已加载 (%s, 线程=%d, 耗时 %v)", paths.model, e.cfg.NumThreads, time.Since(start).Round(time.Millisecond))

	e.impl = impl
	return impl, nil
}

// Synthesize 使用 Kitten 模型合成单声道 float32 音频。
// 模型推理不可中断，ctx 取消时立即返回，推理结束后再释放句柄。
func (e *KittenEngine) Synthesize(ctx context.Context, req Request) (*audio.Buffer, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	sid, err := SpeakerID(req.Voice)
	if err != nil {
		return nil, err
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	impl, err := e.loadLocked()
	if err != nil {
		e.mu.Unlock()
		return nil, newSynthesisError(kittenEngineName, req.Voice, "加载模型失败", err)
	}
	e.busy++
	e.mu.Unlock()

	chunks := splitText(text, e.cfg.MaxChunkChars)
	logger.Debugf("[tts] kitten: 正在合成 %d 个字符 (%d 段)，音色=%s(sid=%d)，语速=%.2f", len([]rune(text)), len(chunks), req.Voice, sid, speed)

	type result struct {
		samples    []float32
		sampleRate int
		failed     bool
	}
	done := make(chan result, 1)
	start := time.Now()

	// 逐段推理，段与段之间检查 ctx，取消后不再继续生成。
	go func() {
		defer e.release()
		var r result
		for i, chunk := range chunks {
			if ctx.Err() != nil {
				break
			}
			generated := impl.Generate(chunk, sid, float32(speed))
			if generated == nil || len(generated.Samples) == 0 {
				logger.Warnf("[tts] kitten: 第 %d 段未生成音频: %q", i+1, chunk)
				r.failed = true
				break
			}
			r.samples = append(r.samples, generated.Samples...)
			r.sampleRate = generated.SampleRate
		}
		done <- r
	}()

	select {
	case <-ctx.Done():
		logger.Debugf("[tts] kitten: 合成被取消")
		return nil, ctx.Err()
	case r := <-done:
		if r.failed || len(r.samples) == 0 {
			return nil, newSynthesisError(kittenEngineName, req.Voice, "模型未生成音频", ErrSynthesisFailed)
		}
		sampleRate := r.sampleRate
		if sampleRate <= 0 {
			sampleRate = e.cfg.SampleRate
		}
		logger.Debugf("[tts] kitten: 生成 %d 个样本 (%d Hz)，耗时 %v", len(r.samples), sampleRate, time.Since(start).Round(time.Millisecond))
		return audio.NewBuffer(r.samples, sampleRate), nil
	}
}

// release 结束一次推理，引擎已关闭且没有其它推理时释放模型。
func (e *KittenEngine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy--
	if e.closed && e.busy == 0 {
		e.freeLocked()
	}
}

func (e *KittenEngine) freeLocked() {
	if e.impl != nil {
		sherpa.DeleteOfflineTts(e.impl)
		e.impl = nil
	}
}

// Close 释放模型。仍有推理在进行时，由最后一次推理负责释放。
func (e *KittenEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	if e.busy == 0 {
		e.freeLocked()
	}
}
