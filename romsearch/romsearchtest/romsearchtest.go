// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package romsearchtest implements a simulated 1-wire bus for testing.
//
// The simulation works at the time slot level: every slot the master emits
// is seen by all the devices, which drive the line low (wired-AND) when they
// send a 0. Devices understand the ROM commands SEARCH ROM, ALARM SEARCH,
// MATCH ROM, SKIP ROM and READ ROM; after the ROM command the first byte is
// recorded as the function command and the following read slots clock out
// the selected devices' Memory.
package romsearchtest

import (
	"github.com/GermanBionicSystems/owbus/romsearch"
	"periph.io/x/conn/v3/onewire"
)

// Device is a simulated 1-wire device.
type Device struct {
	ROM    romsearch.ROM
	Alarm  bool   // takes part in ALARM SEARCH
	Memory []byte // clocked out, LSB first, after the function command
}

// Bus is a simulated 1-wire bus. It implements romsearch.Link and
// onewire.Bus.
type Bus struct {
	Devices []Device
	// Shorted makes Reset fail as if the data line was tied to ground.
	Shorted bool
	// Err, when set, is returned by every link operation.
	Err error
	// DropoutAt, when not 0, makes all devices fall silent at that 1-based
	// bit position of every search pass.
	DropoutAt int

	// Resets and Slots count the bus activity.
	Resets int
	Slots  int
	// Functions records the function command of every transaction.
	Functions []byte

	phase    phase
	active   []bool
	cmd      byte
	function byte
	bit      int // bit index within the current phase
	sub      int // search sub-slot: 0 bit, 1 complement, 2 direction
}

// New returns a Bus holding devices with the given ROMs.
func New(roms ...romsearch.ROM) *Bus {
	b := &Bus{}
	for _, r := range roms {
		b.Devices = append(b.Devices, Device{ROM: r})
	}
	return b
}

func (b *Bus) String() string {
	return "romsearchtest"
}

// Reset implements romsearch.Link.
func (b *Bus) Reset() (bool, error) {
	if b.Err != nil {
		return false, b.Err
	}
	b.Resets++
	if b.Shorted {
		return false, shortedBusError("romsearchtest: bus has a short")
	}
	b.phase = phaseROMCommand
	b.cmd = 0
	b.function = 0
	b.bit = 0
	b.sub = 0
	b.active = make([]bool, len(b.Devices))
	for i := range b.active {
		b.active[i] = true
	}
	return len(b.Devices) != 0, nil
}

// WriteBit implements romsearch.Link.
func (b *Bus) WriteBit(bit byte) error {
	if b.Err != nil {
		return b.Err
	}
	b.Slot(bit)
	return nil
}

// ReadBit implements romsearch.Link.
func (b *Bus) ReadBit() (byte, error) {
	if b.Err != nil {
		return 0, b.Err
	}
	return b.Slot(1), nil
}

// WriteByte implements romsearch.Link.
func (b *Bus) WriteByte(v byte) error {
	if b.Err != nil {
		return b.Err
	}
	for i := 0; i < 8; i++ {
		b.Slot(v >> uint(i))
	}
	return nil
}

// ReadByte reads 8 slots, least significant bit first.
func (b *Bus) ReadByte() (byte, error) {
	if b.Err != nil {
		return 0, b.Err
	}
	var v byte
	for i := 0; i < 8; i++ {
		v |= b.Slot(1) << uint(i)
	}
	return v, nil
}

// Tx implements onewire.Bus. Strong pull-up is accepted and has no effect.
func (b *Bus) Tx(w, r []byte, power onewire.Pullup) error {
	present, err := b.Reset()
	if err != nil {
		return err
	}
	if !present {
		return busError("romsearchtest: no device present")
	}
	for _, v := range w {
		if err := b.WriteByte(v); err != nil {
			return err
		}
	}
	for i := range r {
		if r[i], err = b.ReadByte(); err != nil {
			return err
		}
	}
	return nil
}

// Search implements onewire.Bus.
func (b *Bus) Search(alarmOnly bool) ([]onewire.Address, error) {
	roms, err := romsearch.New(b).Enumerate(alarmOnly)
	addrs := make([]onewire.Address, 0, len(roms))
	for _, r := range roms {
		addrs = append(addrs, r.Address())
	}
	return addrs, err
}

// Slot emits one time slot where the master sends the least significant bit
// of master, 1 meaning the line is released, and returns the line level
// sampled by the master.
func (b *Bus) Slot(master byte) byte {
	b.Slots++
	m := master & 1
	switch b.phase {
	case phaseROMCommand:
		b.cmd |= m << uint(b.bit)
		if b.bit++; b.bit == 8 {
			b.startROMCommand()
		}
		return m
	case phaseSearch:
		return b.searchSlot(m)
	case phaseMatch:
		for i, d := range b.Devices {
			if b.active[i] && d.ROM.Bit(b.bit) != m {
				b.active[i] = false
			}
		}
		if b.bit++; b.bit == 64 {
			b.startFunction()
		}
		return m
	case phaseReadROM:
		i := b.bit
		v := m & b.wired(func(d *Device) byte { return d.ROM.Bit(i) })
		if b.bit++; b.bit == 64 {
			b.startFunction()
		}
		return v
	case phaseFunction:
		if b.bit < 8 {
			b.function |= m << uint(b.bit)
			if b.bit++; b.bit == 8 {
				b.Functions = append(b.Functions, b.function)
			}
			return m
		}
		i := b.bit - 8
		b.bit++
		return m & b.wired(func(d *Device) byte {
			if i/8 >= len(d.Memory) {
				return 1
			}
			return d.Memory[i/8] >> uint(i%8) & 1
		})
	}
	return m
}

func (b *Bus) startROMCommand() {
	b.bit = 0
	switch b.cmd {
	case 0xf0:
		b.phase = phaseSearch
	case 0xec:
		b.phase = phaseSearch
		for i, d := range b.Devices {
			b.active[i] = b.active[i] && d.Alarm
		}
	case 0x55:
		b.phase = phaseMatch
	case 0xcc:
		b.startFunction()
	case 0x33:
		b.phase = phaseReadROM
	default:
		b.phase = phaseIdle
	}
}

func (b *Bus) startFunction() {
	b.phase = phaseFunction
	b.bit = 0
	b.function = 0
}

func (b *Bus) searchSlot(m byte) byte {
	if b.DropoutAt != 0 && b.bit+1 >= b.DropoutAt {
		for i := range b.active {
			b.active[i] = false
		}
	}
	i := b.bit
	switch b.sub {
	case 0:
		b.sub = 1
		return m & b.wired(func(d *Device) byte { return d.ROM.Bit(i) })
	case 1:
		b.sub = 2
		return m & b.wired(func(d *Device) byte { return d.ROM.Bit(i) ^ 1 })
	}
	// Direction slot: devices that do not match drop out until the next reset.
	for j, d := range b.Devices {
		if b.active[j] && d.ROM.Bit(i) != m {
			b.active[j] = false
		}
	}
	b.sub = 0
	if b.bit++; b.bit == 64 {
		b.startFunction()
	}
	return m
}

// wired returns the wired-AND of the bit each active device sends.
func (b *Bus) wired(send func(d *Device) byte) byte {
	v := byte(1)
	for i := range b.Devices {
		if b.active[i] {
			v &= send(&b.Devices[i])
		}
	}
	return v
}

type phase int

const (
	phaseIdle phase = iota
	phaseROMCommand
	phaseSearch
	phaseMatch
	phaseReadROM
	phaseFunction
)

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }

// shortedBusError implements error and onewire.ShortedBusError.
type shortedBusError string

func (e shortedBusError) Error() string   { return string(e) }
func (e shortedBusError) IsShorted() bool { return true }
func (e shortedBusError) BusError() bool  { return true }

var _ romsearch.Link = &Bus{}
var _ onewire.Bus = &Bus{}
