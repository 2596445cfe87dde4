// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import (
	"errors"
	"testing"
	"time"

	"github.com/GermanBionicSystems/owbus/romsearch"
	"github.com/GermanBionicSystems/owbus/romsearch/romsearchtest"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/physic"
)

func TestNew_badAddress(t *testing.T) {
	if _, err := New(&i2ctest.Playback{}, 0x42, &DefaultOpts); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_DS2483(t *testing.T) {
	bus := &i2ctest.Playback{Ops: initDS2483}
	d, err := New(bus, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); s != "DS2483{playback(24)}" {
		t.Fatal(s)
	}
	if ch := d.SelectedChannel(); ch != 0 {
		t.Fatal(ch)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_badStatus(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x18, W: []byte{cmdReset}},
			{Addr: 0x18, W: []byte{cmdSetReadPtr, regStatus}, R: []byte{0x00}},
		},
	}
	if _, err := New(bus, 0x18, &DefaultOpts); err == nil {
		t.Fatal("expected error")
	}
}

func TestDev_ReadBit(t *testing.T) {
	ops := append([]i2ctest.IO{}, initDS2483...)
	ops = append(ops,
		i2ctest.IO{Addr: 0x18, W: []byte{cmd1WBit, 0x80}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x20}},
		i2ctest.IO{Addr: 0x18, W: []byte{cmd1WBit, 0x80}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x00}},
		i2ctest.IO{Addr: 0x18, W: []byte{cmd1WBit, 0x00}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x00}},
	)
	bus := &i2ctest.Playback{Ops: ops}
	d, err := New(bus, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if b, err := d.ReadBit(); err != nil || b != 1 {
		t.Fatalf("got %d, %v", b, err)
	}
	if b, err := d.ReadBit(); err != nil || b != 0 {
		t.Fatalf("got %d, %v", b, err)
	}
	if err := d.WriteBit(0); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDev_Reset_shorted(t *testing.T) {
	ops := append([]i2ctest.IO{}, initDS2483...)
	ops = append(ops,
		i2ctest.IO{Addr: 0x18, W: []byte{cmd1WReset}},
		i2ctest.IO{Addr: 0x18, R: []byte{statusSD}},
	)
	bus := &i2ctest.Playback{Ops: ops}
	d, err := New(bus, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.Reset()
	if s, ok := err.(onewire.ShortedBusError); !ok || !s.IsShorted() {
		t.Fatalf("expected shorted bus error, got %v", err)
	}
}

func TestDev_persistentError(t *testing.T) {
	bus := &i2ctest.Playback{Ops: initDS2483, DontPanic: true}
	d, err := New(bus, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteByte(0xcc); err == nil {
		t.Fatal("expected error")
	}
	// All further calls fail without touching the I²C bus.
	if _, err := d.ReadBit(); err == nil {
		t.Fatal("expected error")
	}
	if _, err := d.Search(false); err == nil {
		t.Fatal("expected error")
	}
}

func TestDev_Search(t *testing.T) {
	b := newBridge(romDS18B20, romDS18S20)
	d, err := New(b, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); s != "DS2483{bridge(24)}" {
		t.Fatal(s)
	}
	addrs, err := d.Search(false)
	if err != nil {
		t.Fatal(err)
	}
	want := []onewire.Address{0xe700080336074510, 0x740000070e41ac28}
	if diff := cmp.Diff(want, addrs); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}
}

func TestDev_Search_alarm(t *testing.T) {
	b := newBridge(romDS18B20, romDS18S20)
	b.bus.Devices[0].Alarm = true
	d, err := New(b, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	addrs, err := d.Search(true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]onewire.Address{0x740000070e41ac28}, addrs); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}
}

func TestDev_Session(t *testing.T) {
	b := newBridge(romDS18B20, romDS18S20, romsearch.NewROM(0x01, 0x1234))
	d, err := New(b, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	d.Lock()
	defer d.Unlock()
	s := romsearch.New(d)
	if ok, err := s.Verify(romDS18S20); err != nil || !ok {
		t.Fatalf("verify: %t, %v", ok, err)
	}
	if ok, err := s.Verify(romsearch.NewROM(0x28, 0x1)); err != nil || ok {
		t.Fatalf("verify: %t, %v", ok, err)
	}
	roms, err := s.EnumerateFamily(0x28)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]romsearch.ROM{romDS18B20}, roms); diff != "" {
		t.Fatalf("family mismatch (-want +got):\n%s", diff)
	}
}

func TestDev_Tx(t *testing.T) {
	b := newBridge(romDS18B20)
	scratchpad := []byte{0x91, 0x01, 0x4b, 0x46, 0x3f, 0xff, 0x0f, 0x10, 0xc5}
	b.bus.Devices[0].Memory = scratchpad
	d, err := New(b, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	var r [9]byte
	if err := d.Tx([]byte{0xcc, 0xbe}, r[:], onewire.WeakPullup); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(scratchpad, r[:]); diff != "" {
		t.Fatalf("read mismatch (-want +got):\n%s", diff)
	}
	if b.strong != 0 {
		t.Fatal("unexpected strong pull-up")
	}
	if err := d.Tx([]byte{0xcc, 0x44}, nil, onewire.StrongPullup); err != nil {
		t.Fatal(err)
	}
	if b.strong != 1 {
		t.Fatalf("expected one strong pull-up, got %d", b.strong)
	}
	if diff := cmp.Diff([]byte{0xbe, 0x44}, b.bus.Functions); diff != "" {
		t.Fatalf("function mismatch (-want +got):\n%s", diff)
	}
}

func TestDev_Tx_noPresence(t *testing.T) {
	d, err := New(newBridge(), 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Tx([]byte{0xcc, 0x44}, nil, onewire.WeakPullup)
	if _, ok := err.(onewire.BusError); !ok {
		t.Fatalf("expected bus error, got %v", err)
	}
}

func TestDev_timeout(t *testing.T) {
	b := newBridge(romDS18B20)
	d, err := New(b, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	b.busy = true
	if err := d.WriteBit(1); err == nil {
		t.Fatal("expected timeout")
	}
}

//

var (
	romDS18S20 = romsearch.ROM{0x10, 0x45, 0x07, 0x36, 0x03, 0x08, 0x00, 0xe7}
	romDS18B20 = romsearch.ROM{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74}

	initDS2483 = []i2ctest.IO{
		{Addr: 0x18, W: []byte{cmdReset}},
		{Addr: 0x18, W: []byte{cmdSetReadPtr, regStatus}, R: []byte{0x18}},
		{Addr: 0x18, W: []byte{cmdWriteConfig, 0xe1}, R: []byte{0x01}},
		{Addr: 0x18, W: []byte{cmdSetReadPtr, regPCR}},
		{Addr: 0x18, W: []byte{cmdAdjPort, 0x06, 0x26, 0x46, 0x66, 0x86}},
	}
)

// bridge emulates a DS2483 whose 1-wire side is a simulated bus.
type bridge struct {
	bus    *romsearchtest.Bus
	ptr    byte // read pointer
	status byte
	data   byte
	conf   byte
	strong int  // strong pull-up requests
	busy   bool // 1-wire busy forever
}

func newBridge(roms ...romsearch.ROM) *bridge {
	return &bridge{bus: romsearchtest.New(roms...)}
}

func (b *bridge) String() string {
	return "bridge"
}

func (b *bridge) SetSpeed(f physic.Frequency) error {
	return nil
}

func (b *bridge) Tx(addr uint16, w, r []byte) error {
	if addr != 0x18 {
		return errors.New("bridge: no ack")
	}
	if len(w) != 0 {
		if err := b.command(w); err != nil {
			return err
		}
	}
	if len(r) != 0 {
		r[0] = b.register()
	}
	return nil
}

func (b *bridge) command(w []byte) error {
	switch w[0] {
	case cmdReset:
		b.status = 0x18
		b.ptr = regStatus
	case cmdSetReadPtr:
		b.ptr = w[1]
	case cmdWriteConfig:
		b.conf = w[1]
		if w[1]&0x04 != 0 {
			b.strong++
		}
		b.ptr = regDCR
	case cmdAdjPort:
	case cmd1WReset:
		present, err := b.bus.Reset()
		b.status = 0
		if err != nil {
			b.status |= statusSD
		} else if present {
			b.status |= statusPPD
		}
		b.ptr = regStatus
	case cmd1WBit:
		b.status &^= statusSBR
		if b.bus.Slot(w[1]>>7) != 0 {
			b.status |= statusSBR
		}
		b.ptr = regStatus
	case cmd1WWrite:
		if err := b.bus.WriteByte(w[1]); err != nil {
			return err
		}
		b.ptr = regStatus
	case cmd1WRead:
		v, err := b.bus.ReadByte()
		if err != nil {
			return err
		}
		b.data = v
		b.ptr = regStatus
	default:
		return errors.New("bridge: unknown command")
	}
	return nil
}

func (b *bridge) register() byte {
	switch b.ptr {
	case regStatus:
		if b.busy {
			return b.status | 1
		}
		return b.status
	case regRDR:
		return b.data
	case regDCR:
		return b.conf & 0x0f
	}
	return 0
}

func init() {
	sleep = func(time.Duration) {}
}
