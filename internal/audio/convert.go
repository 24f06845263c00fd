package audio

import (
	"math"
)

// Float32ToInt16 将 [-1.0, 1.0] 范围的 float32 样本四舍五入为 PCM int16。
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		out[i] = int16(quantize(s))
	}
	return out
}

// Int16ToBytes 将 int16 样本转换为小端字节切片。
func Int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// Float32ToBytes 将 float32 样本直接转换为 16-bit 小端 PCM 字节，供播放设备使用。
func Float32ToBytes(in []float32) []byte {
	return Int16ToBytes(Float32ToInt16(in))
}

// float32ToInts 为 go-audio 的 IntBuffer 准备 16-bit 样本。
func float32ToInts(in []float32) []int {
	out := make([]int, len(in))
	for i, s := range in {
		out[i] = quantize(s)
	}
	return out
}

// intsToFloat32 按位深把 go-audio 整型样本还原为 float32。
func intsToFloat32(in []int, bitDepth int) []float32 {
	scale := float32(math.MaxInt16)
	if bitDepth > 0 && bitDepth != 16 {
		scale = float32(int64(1)<<(bitDepth-1) - 1)
	}
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / scale
	}
	return out
}

// quantize 钳位到 [-1.0, 1.0] 后映射到 int16 范围。
func quantize(s float32) int {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int(math.Round(float64(s) * math.MaxInt16))
}
