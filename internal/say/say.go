// Package say 把命令行输入、语音合成和音频输出串联起来。
package say

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iabetor/kitten-say/internal/audio"
	"github.com/iabetor/kitten-say/internal/logger"
	"github.com/iabetor/kitten-say/internal/tts"
)

// Player 通过播放设备同步播放音频。
type Player interface {
	Play(ctx context.Context, buf *audio.Buffer) error
	Close()
}

// PlayerFactory 在第一次需要播放时打开播放设备。
type PlayerFactory func() (Player, error)

// FileWriter 把音频写入文件。
type FileWriter func(path string, buf *audio.Buffer) error

// Request 是一次命令行调用解析后的参数。
type Request struct {
	Text        string
	Voice       string
	Output      string
	Speed       float64
	ListVoices  bool
	Interactive bool
}

// Orchestrator 是命令编排器：解析输入、调用合成、把结果交给文件或播放设备。
type Orchestrator struct {
	settings Settings
	engine   tts.Engine

	openPlayer PlayerFactory
	writeFile  FileWriter

	playerMu sync.Mutex
	player   Player

	state *StateMachine

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Option 配置 Orchestrator。
type Option func(*Orchestrator)

// WithIO 替换标准输入输出。
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(o *Orchestrator) {
		o.stdin = stdin
		o.stdout = stdout
		o.stderr = stderr
	}
}

// WithPlayerFactory 替换播放设备。
func WithPlayerFactory(f PlayerFactory) Option {
	return func(o *Orchestrator) { o.openPlayer = f }
}

// WithFileWriter 替换文件写入实现。
func WithFileWriter(f FileWriter) Option {
	return func(o *Orchestrator) { o.writeFile = f }
}

// New 创建编排器，默认按 settings 的声道数打开 malgo 播放设备，用 WAV 写文件。
func New(settings Settings, engine tts.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		settings: settings,
		engine:   engine,
		openPlayer: func() (Player, error) {
			return audio.NewPlayer(settings.Channels())
		},
		writeFile: audio.WriteWAV,
		state:     NewStateMachine(),
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run 执行一次命令行调用。
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	if req.ListVoices {
		o.ListVoices(o.stdout)
		return nil
	}

	voice := req.Voice
	if voice == "" {
		voice = o.settings.DefaultVoice()
	}
	if !o.settings.HasVoice(voice) {
		return &Error{Kind: KindUsage, Err: fmt.Errorf("%w: %q", tts.ErrInvalidVoice, voice)}
	}
	speed := req.Speed
	if speed <= 0 {
		speed = o.settings.Speed()
	}

	if req.Interactive {
		if req.Output != "" {
			logger.Warnf("[say] 交互模式忽略 --output %s", req.Output)
		}
		return o.Interactive(ctx, voice, speed)
	}

	text, err := o.ResolveInput(req.Text)
	if err != nil {
		return err
	}
	return o.speak(ctx, text, voice, speed, req.Output)
}

// State 返回编排器的状态机。
func (o *Orchestrator) State() *StateMachine {
	return o.state
}

// ResolveInput 优先使用位置参数，否则读取全部标准输入。
func (o *Orchestrator) ResolveInput(arg string) (string, error) {
	if strings.TrimSpace(arg) != "" {
		return arg, nil
	}

	data, err := io.ReadAll(o.stdin)
	if err != nil {
		return "", &Error{Kind: KindUsage, Err: fmt.Errorf("读取标准输入失败: %w", err)}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", &Error{Kind: KindUsage, Err: ErrNoText}
	}
	return text, nil
}

// Synthesize 调用合成引擎，返回非空的音频缓冲。
func (o *Orchestrator) Synthesize(ctx context.Context, text, voice string, speed float64) (*audio.Buffer, error) {
	requestID := uuid.NewString()
	logger.Debugf("[say] %s: 合成请求 model=%s voice=%s chars=%d", requestID, o.settings.ModelID(), voice, len([]rune(text)))

	buf, err := o.engine.Synthesize(ctx, tts.Request{Text: text, Voice: voice, Speed: speed})
	if err != nil {
		logger.Debugf("[say] %s: 合成失败: %v", requestID, err)
		return nil, wrap(ctx, KindSynthesis, err)
	}
	if buf.Empty() {
		return nil, &Error{Kind: KindSynthesis, Err: tts.ErrSynthesisFailed}
	}
	if buf.SampleRate <= 0 {
		buf.SampleRate = o.settings.SampleRate()
	} else if buf.SampleRate != o.settings.SampleRate() {
		logger.Warnf("[say] %s: 模型采样率 %d Hz 与配置 %d Hz 不一致，按模型输出", requestID, buf.SampleRate, o.settings.SampleRate())
	}

	logger.Debugf("[say] %s: 合成完成 %v", requestID, buf.Duration())
	return buf, nil
}

// Emit 有 path 时写入文件，否则通过默认设备播放并等待播放结束。
func (o *Orchestrator) Emit(ctx context.Context, buf *audio.Buffer, path string) error {
	if path != "" {
		if err := o.writeFile(path, buf); err != nil {
			return &Error{Kind: KindWrite, Err: err}
		}
		fmt.Fprintf(o.stdout, "Audio saved to: %s\n", path)
		return nil
	}

	player, err := o.playerOnce()
	if err != nil {
		return &Error{Kind: KindDevice, Err: err}
	}
	if err := player.Play(ctx, buf); err != nil {
		return wrap(ctx, KindDevice, err)
	}
	return nil
}

// ListVoices 打印音色列表并标出默认音色。
func (o *Orchestrator) ListVoices(w io.Writer) {
	fmt.Fprintln(w, "Available voices:")
	for _, v := range o.settings.Voices() {
		marker := ""
		if v == o.settings.DefaultVoice() {
			marker = " (default)"
		}
		fmt.Fprintf(w, "  %s%s\n", v, marker)
	}
}

// Interactive 逐行读取标准输入并朗读。
// 单行失败只报告不退出；输入结束返回 nil，ctx 取消返回 KindInterrupted。
func (o *Orchestrator) Interactive(ctx context.Context, voice string, speed float64) error {
	fmt.Fprintln(o.stdout, "Interactive mode. Type text and press Enter to speak. Ctrl+D to exit.")

	lines := newLineReader(o.stdin)
	for {
		fmt.Fprint(o.stdout, "> ")
		o.state.Transition(StateReading)

		line, ok, err := lines.next(ctx)
		if err != nil {
			err = &Error{Kind: KindInterrupted, Err: err}
			o.finish(err)
			return err
		}
		if !ok {
			o.finish(nil)
			fmt.Fprintln(o.stdout, "\nExiting...")
			return nil
		}

		text := strings.TrimSpace(line)
		if text == "" {
			o.state.ForceIdle()
			continue
		}

		if err := o.speak(ctx, text, voice, speed, ""); err != nil {
			if KindOf(err) == KindInterrupted {
				return err
			}
			fmt.Fprintf(o.stderr, "%v\n", err)
		}
	}
}

// speak 合成一段文本并输出，结束后状态回到 Idle。
func (o *Orchestrator) speak(ctx context.Context, text, voice string, speed float64, output string) error {
	o.state.Transition(StateSynthesizing)
	buf, err := o.Synthesize(ctx, text, voice, speed)
	if err != nil {
		o.finish(err)
		return err
	}

	o.state.Transition(StateSpeaking)
	err = o.Emit(ctx, buf, output)
	o.finish(err)
	return err
}

// finish 把状态重置为 Idle，被中断时记录中断发生的阶段。
func (o *Orchestrator) finish(err error) {
	from := o.state.ForceIdle()
	if err != nil && KindOf(err) == KindInterrupted {
		logger.Infof("[say] 在 %s 阶段被中断", from)
	}
}

// playerOnce 打开播放设备并在后续调用中复用。
func (o *Orchestrator) playerOnce() (Player, error) {
	o.playerMu.Lock()
	defer o.playerMu.Unlock()

	if o.player != nil {
		return o.player, nil
	}
	p, err := o.openPlayer()
	if err != nil {
		return nil, err
	}
	o.player = p
	return p, nil
}

// Close 释放播放设备，合成引擎由调用方负责关闭。
func (o *Orchestrator) Close() {
	o.playerMu.Lock()
	defer o.playerMu.Unlock()

	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
}

// lineReader 只在被请求时才读取下一行，不会提前缓存输入。
type lineReader struct {
	requests chan struct{}
	results  chan lineResult
}

type lineResult struct {
	line string
	ok   bool
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{
		requests: make(chan struct{}),
		results:  make(chan lineResult),
	}
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for range lr.requests {
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					logger.Warnf("[say] 读取标准输入失败: %v", err)
				}
				lr.results <- lineResult{}
				return
			}
			lr.results <- lineResult{line: scanner.Text(), ok: true}
		}
	}()
	return lr
}

// next 返回下一行；ok 为 false 表示输入结束。
// 读取 goroutine 阻塞在标准输入上时无法取消，中断后随进程退出。
func (lr *lineReader) next(ctx context.Context) (string, bool, error) {
	select {
	case lr.requests <- struct{}{}:
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
	select {
	case r := <-lr.results:
		return r.line, r.ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}
