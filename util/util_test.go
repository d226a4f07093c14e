package util_test

import (
	"fmt"
	"testing"

	"github.com/nasa-jpl/wavegen/util"
)

func ExampleSetBit_msb() {
	out := util.SetBit(0, 31, true)
	fmt.Printf("%032b\n", out)
	// Output: 10000000000000000000000000000000
}

func ExampleSetBit_lsb() {
	out := util.SetBit(255, 0, false)
	fmt.Printf("%08b\n", out)
	// Output: 11111110
}

func ExampleUint32SliceToHex() {
	fmt.Println(util.Uint32SliceToHex([]uint32{1, 0xABCD, 0xFFFFFFFF}))
	// Output: 0x00000001 0x0000abcd 0xffffffff
}

func TestGetBitMatchesSetBit(t *testing.T) {
	for i := uint(0); i < 32; i++ {
		w := util.SetBit(0, i, true)
		if !util.GetBit(w, i) {
			t.Errorf("expected bit %d set in %#x", i, w)
		}
		w = util.SetBit(0xFFFFFFFF, i, false)
		if util.GetBit(w, i) {
			t.Errorf("expected bit %d clear in %#x", i, w)
		}
	}
}

func TestSetBitLeavesOtherBits(t *testing.T) {
	var word uint32 = 0xA5A5A5A5
	out := util.SetBit(word, 6, true)
	if out&^(1<<6) != word&^(1<<6) {
		t.Errorf("expected only bit 6 to change, %#x -> %#x", word, out)
	}
}
