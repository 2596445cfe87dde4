// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package romsearch

import (
	"github.com/GermanBionicSystems/owbus/common"
)

// Link is the bit-level physical layer of a 1-wire bus.
//
// Every method blocks until the bus transaction completes. An error means the
// link itself failed (I/O error, timeout, shorted bus), not that a device
// misbehaved.
type Link interface {
	// Reset emits a reset pulse and returns true if any device answered with
	// a presence pulse.
	Reset() (bool, error)
	// WriteBit emits a write slot for the least significant bit of bit.
	WriteBit(bit byte) error
	// ReadBit emits a read slot and returns the sampled bit, 0 or 1.
	ReadBit() (byte, error)
	// WriteByte emits 8 write slots, least significant bit first.
	WriteByte(b byte) error
}

// State is the resumable state of an enumeration. The zero value is the
// initial state.
type State struct {
	// ROM is the last discovered ROM, or the one being searched for. It is
	// updated in place during a pass.
	ROM ROM
	// LastDiscrepancy is the 1-based bit position where the last pass took
	// the 0 branch for the last time; 0 when there is none.
	LastDiscrepancy int
	// LastFamilyDiscrepancy is the same as LastDiscrepancy restricted to the
	// family code, bit positions 1 to 8.
	LastFamilyDiscrepancy int
	// Exhausted is set once the last device has been found.
	Exhausted bool
}

// Reset restores the initial resumption markers. ROM is left as is.
func (s *State) Reset() {
	s.LastDiscrepancy = 0
	s.LastFamilyDiscrepancy = 0
	s.Exhausted = false
}

// Search runs one search pass and returns true if a device was found, in
// which case its ROM is in st.ROM.
//
// Search returns false without touching the bus once st is exhausted. Any
// failed pass (no presence pulse, devices vanishing mid-pass, CRC mismatch,
// zero family code) resets st and returns false with a nil error; the next
// call starts over. A non-nil error is only returned when l fails, after st
// was reset the same way.
func Search(l Link, st *State) (bool, error) {
	return result(search(l, st, cmdSearchROM))
}

// result splits the outcome of search into found and a link error.
func result(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if isFailure(err) {
		return false, nil
	}
	return false, err
}

func search(l Link, st *State, cmd byte) error {
	if st.Exhausted {
		return ErrExhausted
	}
	if err := pass(l, st, cmd); err != nil {
		st.Reset()
		return err
	}
	return nil
}

// pass walks the 64 bit positions once.
func pass(l Link, st *State, cmd byte) error {
	present, err := l.Reset()
	if err != nil {
		return err
	}
	if !present {
		return ErrNoPresence
	}
	if err := l.WriteByte(cmd); err != nil {
		return err
	}

	var crc byte
	lastZero := 0
	index := 0
	mask := byte(1)
	for p := 1; p <= 64; p++ {
		idBit, err := l.ReadBit()
		if err != nil {
			return err
		}
		cmpBit, err := l.ReadBit()
		if err != nil {
			return err
		}

		var direction byte
		switch {
		case idBit != 0 && cmpBit != 0:
			// Nobody is driving the bus anymore.
			return ErrBusDropout
		case idBit != cmpBit:
			// All remaining devices agree.
			if idBit != 0 {
				direction = 1
			}
		default:
			if p < st.LastDiscrepancy {
				// Replay the path of the previous pass.
				if st.ROM[index]&mask != 0 {
					direction = 1
				}
			} else if p == st.LastDiscrepancy {
				direction = 1
			}
			if direction == 0 {
				lastZero = p
				if p <= 8 {
					st.LastFamilyDiscrepancy = p
				}
			}
		}

		if direction == 1 {
			st.ROM[index] |= mask
		} else {
			st.ROM[index] &^= mask
		}
		if err := l.WriteBit(direction); err != nil {
			return err
		}

		mask <<= 1
		if mask == 0 {
			crc = common.CRC8Step(crc, st.ROM[index])
			index++
			mask = 1
		}
	}

	if crc != 0 {
		return ErrCRC
	}
	if st.ROM[0] == 0 {
		return ErrZeroFamily
	}
	st.LastDiscrepancy = lastZero
	st.Exhausted = lastZero == 0
	return nil
}

const (
	cmdSearchROM   = 0xf0 // all devices take part
	cmdAlarmSearch = 0xec // only devices with an active alarm take part
)
