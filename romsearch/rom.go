// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package romsearch

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/GermanBionicSystems/owbus/common"
	"periph.io/x/conn/v3/onewire"
)

// ROM is a 64-bit 1-wire ROM code in bus order: byte 0 is the family code,
// bytes 1 to 6 the serial number and byte 7 the CRC8 of bytes 0 to 6.
type ROM [8]byte

// NewROM returns the ROM with the given family code and the low 48 bits of
// serial, with its CRC byte computed.
func NewROM(family byte, serial uint64) ROM {
	var r ROM
	binary.LittleEndian.PutUint64(r[:], serial<<8|uint64(family))
	r[7] = common.CRC8(r[:7])
	return r
}

// FromAddress converts a periph onewire.Address, which stores the family code
// in its least significant byte.
func FromAddress(a onewire.Address) ROM {
	var r ROM
	binary.LittleEndian.PutUint64(r[:], uint64(a))
	return r
}

// Address returns the ROM as a periph onewire.Address.
func (r ROM) Address() onewire.Address {
	return onewire.Address(binary.LittleEndian.Uint64(r[:]))
}

// Family returns the family code.
func (r ROM) Family() byte {
	return r[0]
}

// Valid returns true if the CRC byte matches the first 7 bytes.
func (r ROM) Valid() bool {
	return common.CheckCRC8(r[:])
}

// String returns the 16 hex digits of the ROM in bus order, family first.
func (r ROM) String() string {
	return hex.EncodeToString(r[:])
}

// ParseROM parses a ROM code.
//
// Two forms are accepted: 16 hex digits in bus order, family code first,
// optionally separated by '-', ':', '.' or spaces ("28-ac410e070000-74"), or
// a 0x prefixed periph onewire.Address ("0x740000070e41ac28").
//
// The CRC byte must match.
func ParseROM(s string) (ROM, error) {
	var r ROM
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return r, errors.New("romsearch: invalid address " + s)
		}
		r = FromAddress(onewire.Address(v))
	} else {
		digits := strings.Map(func(c rune) rune {
			switch c {
			case '-', ':', '.', ' ':
				return -1
			}
			return c
		}, s)
		b, err := hex.DecodeString(digits)
		if err != nil || len(b) != len(r) {
			return r, errors.New("romsearch: invalid ROM " + s)
		}
		copy(r[:], b)
	}
	if !r.Valid() {
		return r, errors.New("romsearch: crc check failed for " + s)
	}
	return r, nil
}

// Bit returns the bit at 0-based position i in transmission order: bit 0 of
// the family code first, bit 7 of the CRC byte last.
func (r ROM) Bit(i int) byte {
	return r[i/8] >> uint(i%8) & 1
}
