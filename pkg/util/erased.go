package util

import (
	"unsafe"
)

const erasedWord = ^uint64(0)

//IsErased returns true if every byte of block is 0xFF, the value of an erased
// flash cell. Empty blocks are considered erased.
func IsErased(block []byte) bool {
	words := len(block) / 8
	if words > 0 {
		for _, word := range unsafe.Slice((*uint64)(unsafe.Pointer(&block[0])), words) {
			if word != erasedWord {
				return false
			}
		}
	}

	for _, char := range block[words*8:] {
		if char != 0xFF {
			return false
		}
	}
	return true
}

//EraseFill sets every byte of block to 0xFF
func EraseFill(block []byte) {
	if len(block) < 1 {
		return
	}

	block[0] = 0xFF
	for i := 1; i < len(block); i <<= 1 {
		copy(block[i:], block[:i])
	}
}
