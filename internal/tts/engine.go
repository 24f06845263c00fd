package tts

import (
	"context"

	"github.com/iabetor/kitten-say/internal/audio"
)

// Request 描述一次合成请求。
type Request struct {
	Text  string
	Voice string
	// Speed 为 0 时按 1.0 处理。
	Speed float64
}

// Engine 定义语音合成后端接口。
type Engine interface {
	// Synthesize 将文本转换为单声道音频缓冲。
	// 失败时返回的错误可以用 errors.Is 区分 ErrEmptyText、ErrInvalidVoice 等。
	Synthesize(ctx context.Context, req Request) (*audio.Buffer, error)
	// Close 释放模型等资源。
	Close()
}
