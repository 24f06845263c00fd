package audio

import (
	"math"
	"testing"
)

func TestIntsToFloat32_MaxInt16(t *testing.T) {
	out := intsToFloat32([]int{math.MaxInt16, 0}, 16)
	if out[0] != 1.0 || out[1] != 0 {
		t.Fatalf("expected [1 0], got %v", out)
	}
	if len(intsToFloat32(nil, 16)) != 0 {
		t.Fatal("expected empty slice")
	}
}

func TestFloat32ToInt16_Rounds(t *testing.T) {
	out := Float32ToInt16([]float32{0.5, -0.5, 0})
	if out[0] != 16384 {
		t.Errorf("expected 16384 for 0.5, got %d", out[0])
	}
	if out[1] != -16384 {
		t.Errorf("expected -16384 for -0.5, got %d", out[1])
	}
	if out[2] != 0 {
		t.Errorf("expected 0 for 0.0, got %d", out[2])
	}
}

func TestFloat32ToInt16_Clamp(t *testing.T) {
	out := Float32ToInt16([]float32{1.5, -1.5})
	if out[0] != math.MaxInt16 {
		t.Errorf("expected %d (clamped to 1.0), got %d", math.MaxInt16, out[0])
	}
	if out[1] != -math.MaxInt16 {
		t.Errorf("expected %d (clamped to -1.0), got %d", -math.MaxInt16, out[1])
	}
}

func TestInt16ToBytes_LittleEndian(t *testing.T) {
	out := Int16ToBytes([]int16{0x0102})
	if len(out) != 2 || out[0] != 0x02 || out[1] != 0x01 {
		t.Fatalf("expected [0x02, 0x01], got %v", out)
	}
}

func TestFloat32ToBytes_Length(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected int
	}{
		{"四个样本", []float32{0.5, -0.5, 0.0, 1.0}, 8},
		{"空输入", []float32{}, 0},
		{"单样本", []float32{0.5}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Float32ToBytes(tt.input)); got != tt.expected {
				t.Errorf("字节长度错误: got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestIntsToFloat32_BitDepth(t *testing.T) {
	out := intsToFloat32([]int{math.MaxInt16, 0}, 16)
	if out[0] != 1.0 || out[1] != 0 {
		t.Errorf("16-bit: got %v", out)
	}

	out = intsToFloat32([]int{127}, 8)
	if out[0] != 1.0 {
		t.Errorf("8-bit full scale: got %v", out[0])
	}
}

func TestMixDown(t *testing.T) {
	out := mixDown([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(out) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("frame %d: got %f, want %f", i, out[i], want[i])
		}
	}
}
