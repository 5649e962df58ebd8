package util

import (
	"fmt"
	"testing"
)

func TestIsErased(t *testing.T) {
	cases := []struct {
		desc     string
		data     []byte
		isErased bool
	}{
		{"nil", nil, true},
		{"empty", []byte{}, true},
		{"single-erased", []byte{0xFF}, true},
		{"seven-erased", erasedBlock(7), true},
		{"eight-erased", erasedBlock(8), true},
		{"nine-erased", erasedBlock(9), true},
		{"huge-erased-aligned", erasedBlock(256), true},
		{"huge-erased-unaligned", erasedBlock(257), true},
		{"single-zero", []byte{0}, false},
		{"eight-zero", make([]byte, 8), false},
		{"huge-zero", make([]byte, 256), false},
		{"single-bit-cleared", []byte{0xFF, 0xFE}, false},
		{"eight-erased-single-programmed", append(erasedBlock(8), 0x7F), false},
		{"programmed-inside-word", append([]byte{0xFF, 0xFF, 0xEF}, erasedBlock(13)...), false},
	}

	for _, tcase := range cases {
		tcase := tcase
		t.Run(tcase.desc, func(t *testing.T) {
			if actual := IsErased(tcase.data); actual != tcase.isErased {
				t.Fatalf("IsErased(%v) returned %t rather than %t", tcase.data, actual, tcase.isErased)
			}
		})
	}
}

func erasedBlock(count int) []byte {
	block := make([]byte, count)
	for i := range block {
		block[i] = 0xFF
	}
	return block
}

func TestEraseFill(t *testing.T) {
	t.Run("count-nil", func(t *testing.T) {
		if EraseFill(nil); !IsErased(nil) {
			t.Fatal("Empty block was not correctly erase-filled")
		}
	})

	for count := 1; count <= 8192*4; count <<= 1 {
		count := count
		t.Run(fmt.Sprintf("count-%d", count), func(t *testing.T) {
			block := make([]byte, count+1)
			if EraseFill(block); !IsErased(block) {
				t.Fatalf("Block of %d zeros was not correctly erase-filled", count+1)
			}
		})
	}
}

func BenchmarkIsErased(b *testing.B) {
	block := erasedBlock(b.N)
	b.ReportAllocs()
	b.ResetTimer()

	IsErased(block)
}
