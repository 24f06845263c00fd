package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iabetor/kitten-say/internal/config"
	"github.com/iabetor/kitten-say/internal/logger"
	"github.com/iabetor/kitten-say/internal/say"
	"github.com/iabetor/kitten-say/internal/tts"
)

// options 保存命令行参数。
type options struct {
	voice       string
	output      string
	speed       float64
	listVoices  bool
	interactive bool
	configPath  string
	noCache     bool
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "kitten-say [text]",
		Short: "Text-to-speech using KittenTTS (similar to macOS say command)",
		Example: `  kitten-say "Hello, world!"
  kitten-say -v expr-voice-3-m "Hello from a male voice"
  kitten-say -o output.wav "Save this to a file"
  echo "Pipe text to speech" | kitten-say
  kitten-say -l  # List available voices`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSay(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.voice, "voice", "v", "", fmt.Sprintf("Voice to use (default: %s)", config.DefaultVoice))
	flags.StringVarP(&opts.output, "output", "o", "", "Save audio to a WAV `FILE` (.wav) instead of playing")
	flags.BoolVarP(&opts.listVoices, "list-voices", "l", false, "List available voices")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "Interactive mode - keep reading lines from stdin")
	flags.Float64VarP(&opts.speed, "speed", "s", 0, "Speech speed multiplier (default from config, 1.0)")
	flags.StringVar(&opts.configPath, "config", config.DefaultPath(), "Config file path")
	flags.BoolVar(&opts.noCache, "no-cache", false, "Do not read or write the speech cache")
	flags.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")

	return cmd
}

func runSay(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := config.LoadOrDefault(opts.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	logCfg := logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Output:     cmd.ErrOrStderr(),
	}
	if opts.verbose {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		return err
	}

	settings, err := say.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}

	req := say.Request{
		Voice:       opts.voice,
		Output:      opts.output,
		Speed:       opts.speed,
		ListVoices:  opts.listVoices,
		Interactive: opts.interactive,
	}
	if len(args) > 0 {
		req.Text = args[0]
	}
	if !req.ListVoices {
		if req.Voice != "" && !tts.IsValidVoice(req.Voice) {
			return &say.Error{Kind: say.KindUsage, Err: fmt.Errorf("invalid choice %q for --voice (choose from %v)", req.Voice, tts.Voices())}
		}
		if req.Speed < 0 {
			return &say.Error{Kind: say.KindUsage, Err: fmt.Errorf("--speed must be positive, got %v", req.Speed)}
		}
		if req.Output != "" && !req.Interactive && !strings.EqualFold(filepath.Ext(req.Output), ".wav") {
			return &say.Error{Kind: say.KindUsage, Err: fmt.Errorf("unsupported output format %q for --output, only .wav files are written", req.Output)}
		}
	}

	// 列出音色不需要模型和缓存
	engine, err := newEngine(cfg, opts.noCache || opts.listVoices, opts.verbose)
	if err != nil {
		return err
	}
	defer engine.Close()

	o := say.New(settings, engine,
		say.WithIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()))
	defer o.Close()

	return o.Run(cmd.Context(), req)
}

// newEngine 创建 Kitten 引擎，按配置包装语音缓存。debug 打开 sherpa-onnx 的模型日志。
func newEngine(cfg *config.Config, noCache, debug bool) (tts.Engine, error) {
	var engine tts.Engine = tts.NewKittenEngine(tts.KittenConfig{
		ModelDir:      cfg.Model.Dir,
		NumThreads:    cfg.Model.NumThreads,
		Provider:      cfg.Model.Provider,
		SampleRate:    cfg.Audio.SampleRate,
		MaxChunkChars: cfg.Model.MaxChunkChars,
		Debug:         debug,
	})
	if noCache || cfg.Cache.MaxSizeMB == 0 {
		return engine, nil
	}

	cache, err := tts.OpenSpeechCache(cfg.Cache.Dir, cfg.Cache.MaxSizeMB)
	if err != nil {
		logger.Warnf("[main] 打开语音缓存失败，继续不使用缓存: %v", err)
		return engine, nil
	}
	if debug {
		logCacheSummary(cache, cfg.Cache.MaxSizeMB)
	}
	return tts.NewCachedEngine(engine, cache, cfg.Model.ID), nil
}

// logCacheSummary 在调试日志中输出缓存条目数和占用空间。
func logCacheSummary(cache *tts.SpeechCache, maxSizeMB int64) {
	entries, err := cache.List()
	if err != nil {
		logger.Warnf("[main] 读取语音缓存索引失败: %v", err)
		return
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	logger.Debugf("[main] 语音缓存 %s: %d 条, %d 字节, 上限 %d MB", cache.IndexPath(), len(entries), total, maxSizeMB)
}

// execute 运行命令并返回退出码。
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	report(stderr, err)
	return say.ExitCode(err)
}

// report 按错误类别输出到 stderr。
func report(w io.Writer, err error) {
	switch say.KindOf(err) {
	case say.KindUnknown:
		if err != nil {
			fmt.Fprintf(w, "kitten-say: error: %v\n", err)
		}
	case say.KindInterrupted:
		fmt.Fprintln(w, "\nInterrupted!")
	case say.KindUsage:
		fmt.Fprintf(w, "kitten-say: error: %v\nRun 'kitten-say --help' for usage.\n", err)
	default:
		fmt.Fprintf(w, "%v\n", err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)

	stop()
	logger.Sync()
	os.Exit(code)
}
