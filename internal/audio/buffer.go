package audio

import (
	"errors"
	"time"
)

var (
	// ErrDevice 表示播放设备初始化或播放失败。
	ErrDevice = errors.New("audio device failure")
	// ErrWrite 表示音频文件写入失败。
	ErrWrite = errors.New("audio file write failure")
)

// Buffer 是一次合成得到的单声道音频，样本范围 [-1.0, 1.0]。
// 每个 Buffer 只被一个输出端消费一次。
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// NewBuffer 创建指定采样率的音频缓冲。
func NewBuffer(samples []float32, sampleRate int) *Buffer {
	return &Buffer{Samples: samples, SampleRate: sampleRate}
}

// Empty 返回缓冲是否没有任何样本。
func (b *Buffer) Empty() bool {
	return b == nil || len(b.Samples) == 0
}

// Duration 返回音频时长。
func (b *Buffer) Duration() time.Duration {
	if b.Empty() || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}
