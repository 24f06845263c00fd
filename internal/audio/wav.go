package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth    = 16
	wavPCMFormat   = 1
	wavNumChannels = 1
)

// EncodeWAV 将缓冲编码为 16-bit 单声道 PCM WAV 写入 w。
func EncodeWAV(w io.WriteSeeker, buf *Buffer) error {
	if buf == nil || buf.SampleRate <= 0 {
		return fmt.Errorf("[audio] 无效的采样率")
	}

	enc := wav.NewEncoder(w, buf.SampleRate, wavBitDepth, wavNumChannels, wavPCMFormat)
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: wavNumChannels, SampleRate: buf.SampleRate},
		Data:           float32ToInts(buf.Samples),
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("[audio] 写入 WAV 数据失败: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("[audio] 写入 WAV 头失败: %w", err)
	}
	return nil
}

// WriteWAV 将缓冲写入用户指定的 path。
// 先在内存中完成编码，再按 0644（受 umask 影响）打开并截断目标文件写入，
// 符号链接和设备文件会被写穿而不是替换。返回的错误包装 ErrWrite。
func WriteWAV(path string, buf *Buffer) error {
	data, err := encodeWAVBytes(buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: 打开文件失败: %v", ErrWrite, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: 写入 %s 失败: %v", ErrWrite, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: 关闭文件失败: %v", ErrWrite, err)
	}
	return nil
}

// WriteWAVAtomic 先写同目录临时文件再 rename，失败时不会留下半个文件。
// 只用于程序自己管理的文件，目标会被替换。
func WriteWAVAtomic(path string, buf *Buffer) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: 创建文件失败: %v", ErrWrite, err)
	}
	tmpPath := tmp.Name()

	if err := EncodeWAV(tmp, buf); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: 关闭文件失败: %v", ErrWrite, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: 重命名到 %s 失败: %v", ErrWrite, path, err)
	}
	return nil
}

// encodeWAVBytes 在内存中编码，目标不可 seek（管道、终端）时也能写出完整文件头。
func encodeWAVBytes(buf *Buffer) ([]byte, error) {
	var mem seekBuffer
	if err := EncodeWAV(&mem, buf); err != nil {
		return nil, err
	}
	return mem.buf, nil
}

// seekBuffer 是可回写的内存缓冲，满足 wav.Encoder 对 io.WriteSeeker 的要求。
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.pos)
	case io.SeekEnd:
		base = int64(len(b.buf))
	default:
		return 0, errors.New("[audio] 无效的 whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("[audio] seek 到负偏移")
	}
	b.pos = int(next)
	return next, nil
}

// DecodeWAV 从 r 读取 PCM WAV，多声道会取平均混为单声道。
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("[audio] 不是有效的 WAV 文件")
	}

	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("[audio] 读取 WAV 数据失败: %w", err)
	}

	samples := intsToFloat32(ib.Data, int(dec.BitDepth))
	if channels := int(dec.NumChans); channels > 1 {
		samples = mixDown(samples, channels)
	}
	return NewBuffer(samples, int(dec.SampleRate)), nil
}

// ReadWAV 读取 path 指向的 WAV 文件。
func ReadWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[audio] 打开 %s 失败: %w", path, err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// mixDown 把交错的多声道样本取平均得到单声道。
func mixDown(interleaved []float32, channels int) []float32 {
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
