package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/iabetor/kitten-say/internal/logger"
)

// Player 使用 malgo (miniaudio) 通过默认扬声器播放合成结果。
type Player struct {
	ctx      *malgo.AllocatedContext
	channels uint32
	mu       sync.Mutex
	closed   bool
}

// NewPlayer 创建一个新的音频播放实例，目前只支持单声道。
// 返回的错误包装 ErrDevice。
func NewPlayer(channels int) (*Player, error) {
	if channels != 1 {
		return nil, fmt.Errorf("%w: 不支持 %d 声道", ErrDevice, channels)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: 初始化播放上下文失败: %v", ErrDevice, err)
	}

	return &Player{
		ctx:      ctx,
		channels: uint32(channels),
	}, nil
}

// Play 按缓冲自身的采样率播放，阻塞直到播放完成或 ctx 被取消。
func (p *Player) Play(ctx context.Context, buf *Buffer) error {
	if buf.Empty() {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%w: 播放器已关闭", ErrDevice)
	}
	p.mu.Unlock()

	pcmBytes := Float32ToBytes(buf.Samples)
	pos := 0
	done := make(chan struct{})

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = p.channels
	deviceConfig.SampleRate = uint32(buf.SampleRate)
	deviceConfig.PeriodSizeInFrames = 512
	deviceConfig.Periods = 2

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			bytesNeeded := int(frameCount) * int(p.channels) * 2
			if pos >= len(pcmBytes) {
				// 数据播完，填充静音
				clear(outputSamples[:bytesNeeded])
				select {
				case done <- struct{}{}:
				default:
				}
				return
			}

			end := pos + bytesNeeded
			if end > len(pcmBytes) {
				end = len(pcmBytes)
			}
			n := copy(outputSamples, pcmBytes[pos:end])
			if n < bytesNeeded {
				clear(outputSamples[n:bytesNeeded])
			}
			pos = end
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("%w: 初始化播放设备失败: %v", ErrDevice, err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("%w: 启动播放设备失败: %v", ErrDevice, err)
	}
	defer device.Stop()

	logger.Debugf("[audio] 开始播放 %v (%d Hz)", buf.Duration(), buf.SampleRate)

	select {
	case <-ctx.Done():
		logger.Debugf("[audio] 播放被取消")
		return ctx.Err()
	case <-done:
		logger.Debugf("[audio] 播放完成")
		return nil
	}
}

// Close 释放所有资源。
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}
