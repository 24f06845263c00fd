package say

import (
	"context"
	"errors"
)

// Kind 区分一次调用失败的原因。
type Kind int

const (
	// KindUnknown 表示不是由编排器产生的错误。
	KindUnknown Kind = iota
	// KindUsage 没有可用的文本或参数无效。
	KindUsage
	// KindSynthesis 模型未能生成音频。
	KindSynthesis
	// KindWrite 音频文件写入失败。
	KindWrite
	// KindDevice 播放设备失败。
	KindDevice
	// KindInterrupted 收到中断信号。
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage error"
	case KindSynthesis:
		return "error generating speech"
	case KindWrite:
		return "error saving audio file"
	case KindDevice:
		return "error playing audio"
	case KindInterrupted:
		return "interrupted"
	default:
		return "error"
	}
}

// ErrNoText 表示参数和标准输入都没有提供文本。
var ErrNoText = errors.New("no text provided, use --help for usage information")

// Error 是编排器返回的错误，调用方通过 Kind 判断类别而不必解析错误文本。
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf 返回 err 的类别，nil 返回 KindUnknown。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ExitCode 把调用结果映射为进程退出码。
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// wrap 给 err 标记类别；ctx 已取消时一律视为中断。
func wrap(ctx context.Context, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		kind = KindInterrupted
	}
	return &Error{Kind: kind, Err: err}
}
