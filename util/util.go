// Package util contains misc internal utilities.
package util

import (
	"strconv"
	"strings"
)

// SetBit returns word with the given bit set (on) or cleared
func SetBit(word uint32, bitIndex uint, on bool) uint32 {
	if on {
		return word | (1 << bitIndex)
	}
	return word &^ (1 << bitIndex)
}

// GetBit returns the value of a given bit in a word
func GetBit(word uint32, bitIndex uint) bool {
	return (word>>bitIndex)&1 == 1
}

// Uint32SliceToHex converts a slice of register words to space separated,
// zero padded hex, e.g. []uint32{1, 0xABCD} => "0x00000001 0x0000abcd"
func Uint32SliceToHex(words []uint32) string {
	s := make([]string, len(words))
	for i, v := range words {
		h := strconv.FormatUint(uint64(v), 16)
		s[i] = "0x" + strings.Repeat("0", 8-len(h)) + h
	}
	return strings.Join(s, " ")
}
