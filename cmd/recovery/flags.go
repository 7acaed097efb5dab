package main

import (
	"fmt"
	"strconv"
)

// numberFlag is an unsigned flag that accepts decimal, 0x hex, 0o octal and
// 0b binary, bounded to bits.
type numberFlag struct {
	value uint64
	bits  int
	set   bool
}

func newNumberFlag(def uint64, bits int) *numberFlag {
	return &numberFlag{value: def, bits: bits}
}

func (f *numberFlag) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("0x%X", f.value)
}

func (f *numberFlag) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, f.bits)
	if err != nil {
		return fmt.Errorf("not a %d-bit unsigned number: %s", f.bits, s)
	}
	f.value = v
	f.set = true
	return nil
}

func (f *numberFlag) uint16() uint16 { return uint16(f.value) }
func (f *numberFlag) uint32() uint32 { return uint32(f.value) }
