package tts

import "errors"

var (
	// ErrInvalidVoice 表示请求的音色不在内置列表中。
	ErrInvalidVoice = errors.New("invalid or unsupported voice")

	// ErrEmptyText 表示待合成文本为空。
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrModelNotFound 表示模型目录缺少必要文件。
	ErrModelNotFound = errors.New("model files not found")

	// ErrSynthesisFailed 表示模型没有生成任何音频。
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrEngineClosed 表示引擎已经关闭。
	ErrEngineClosed = errors.New("engine closed")
)

// SynthesisError 携带出错的引擎和音色信息。
type SynthesisError struct {
	Engine  string
	Voice   string
	Message string
	Cause   error
}

func (e *SynthesisError) Error() string {
	msg := e.Engine + ": " + e.Message
	if e.Voice != "" {
		msg += " (voice=" + e.Voice + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

func newSynthesisError(engine, voice, message string, cause error) *SynthesisError {
	return &SynthesisError{Engine: engine, Voice: voice, Message: message, Cause: cause}
}
