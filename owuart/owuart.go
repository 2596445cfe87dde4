// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owuart

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/GermanBionicSystems/owbus/romsearch"
	"go.bug.st/serial"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/onewire"
)

// Port is the subset of serial.Port used by Dev.
type Port interface {
	io.ReadWriter
	SetMode(mode *serial.Mode) error
	ResetInputBuffer() error
}

// Opts contains options to pass to the constructor.
type Opts struct {
	ResetBaud   int           // baud rate for the reset pulse, 9600 gives a ~520µs low time
	DataBaud    int           // baud rate for the time slots, 115200 gives a ~8.7µs start bit
	ReadTimeout time.Duration // how long to wait for an echo, only used by Open
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	ResetBaud:   9600,
	DataBaud:    115200,
	ReadTimeout: 100 * time.Millisecond,
}

// Open opens the serial port name and returns a Dev using it.
//
// Close must be called to release the port.
func Open(name string, opts *Opts) (*Dev, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	p, err := serial.Open(name, mode(opts.DataBaud))
	if err != nil {
		return nil, fmt.Errorf("owuart: error while opening %s: %w", name, err)
	}
	if err := p.SetReadTimeout(opts.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("owuart: error while setting read timeout: %w", err)
	}
	d := &Dev{port: p, closer: p, name: name, opts: *opts, baud: opts.DataBaud}
	return d, nil
}

// New returns a Dev that uses an already opened port. The port's read timeout
// must be set, Dev treats a read returning no data as a timeout.
func New(p Port, opts *Opts) (*Dev, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	d := &Dev{port: p, name: "port", opts: *opts}
	if err := d.setBaud(opts.DataBaud); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is a 1-wire bus master on a UART. It implements onewire.Bus and
// romsearch.Link.
//
// The romsearch.Link methods do not lock; Tx and Search hold the lock for
// their whole duration. Code driving a romsearch.Session on a Dev shared with
// other goroutines must hold the lock too.
type Dev struct {
	sync.Mutex           // lock for the bus while a transaction is in progress
	port       Port      // serial port, TX and RX tied to the data line
	closer     io.Closer // set when the port was opened by Open
	name       string    // port name
	opts       Opts      // baud rates
	baud       int       // current baud rate of port
}

func (d *Dev) String() string {
	return "owuart{" + d.name + "}"
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// Close closes the port if it was opened by Open.
func (d *Dev) Close() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}

// Tx performs a bus transaction: reset, write w, then read len(r) bytes.
//
// A UART cannot source a strong pull-up; StrongPullup is accepted and the bus
// is left on its weak pull-up resistor. Parasite powered devices need an
// external supply on this master.
func (d *Dev) Tx(w, r []byte, power onewire.Pullup) error {
	d.Lock()
	defer d.Unlock()

	if present, err := d.Reset(); err != nil {
		return err
	} else if !present {
		return busError("owuart: no device present")
	}
	for _, b := range w {
		if err := d.WriteByte(b); err != nil {
			return err
		}
	}
	for i := range r {
		b, err := d.readByte()
		if err != nil {
			return err
		}
		r[i] = b
	}
	return nil
}

// Search performs a "search" cycle on the 1-wire bus and returns the addresses
// of all devices on the bus if alarmOnly is false and of all devices in alarm
// state if alarmOnly is true.
//
// If an error occurs during the search the already-discovered devices are
// returned with the error.
func (d *Dev) Search(alarmOnly bool) ([]onewire.Address, error) {
	d.Lock()
	defer d.Unlock()

	roms, err := romsearch.New(d).Enumerate(alarmOnly)
	addrs := make([]onewire.Address, 0, len(roms))
	for _, r := range roms {
		addrs = append(addrs, r.Address())
	}
	return addrs, err
}

// Reset implements romsearch.Link.
//
// It sends 0xf0 at the reset baud rate. An unchanged echo means nobody
// answered, an echo of 0 means the line never went back high.
func (d *Dev) Reset() (bool, error) {
	if err := d.setBaud(d.opts.ResetBaud); err != nil {
		return false, err
	}
	var echo [1]byte
	err := d.exchange([]byte{0xf0}, echo[:])
	if err2 := d.setBaud(d.opts.DataBaud); err == nil {
		err = err2
	}
	if err != nil {
		return false, err
	}
	switch echo[0] {
	case 0xf0:
		return false, nil
	case 0x00:
		return false, shortedBusError("owuart: bus has a short")
	}
	return true, nil
}

// WriteBit implements romsearch.Link.
func (d *Dev) WriteBit(bit byte) error {
	w := [1]byte{symbol(bit)}
	var echo [1]byte
	if err := d.exchange(w[:], echo[:]); err != nil {
		return err
	}
	if echo != w {
		return busError("owuart: bus contention while writing")
	}
	return nil
}

// ReadBit implements romsearch.Link.
func (d *Dev) ReadBit() (byte, error) {
	var echo [1]byte
	if err := d.exchange([]byte{0xff}, echo[:]); err != nil {
		return 0, err
	}
	return echo[0] & 1, nil
}

// WriteByte implements romsearch.Link. The 8 slots are sent as one write.
func (d *Dev) WriteByte(b byte) error {
	var w, echo [8]byte
	for i := range w {
		w[i] = symbol(b >> uint(i))
	}
	if err := d.exchange(w[:], echo[:]); err != nil {
		return err
	}
	if echo != w {
		return busError("owuart: bus contention while writing")
	}
	return nil
}

// readByte reads 8 slots, least significant bit first.
func (d *Dev) readByte() (byte, error) {
	w := [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	var echo [8]byte
	if err := d.exchange(w[:], echo[:]); err != nil {
		return 0, err
	}
	var b byte
	for i, e := range echo {
		b |= (e & 1) << uint(i)
	}
	return b, nil
}

// exchange sends w and reads back the same number of characters.
func (d *Dev) exchange(w, echo []byte) error {
	if err := d.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("owuart: %w", err)
	}
	if _, err := d.port.Write(w); err != nil {
		return fmt.Errorf("owuart: %w", err)
	}
	for n := 0; n < len(echo); {
		m, err := d.port.Read(echo[n:])
		if err != nil {
			return fmt.Errorf("owuart: %w", err)
		}
		if m == 0 {
			return errTimeout
		}
		n += m
	}
	return nil
}

func (d *Dev) setBaud(baud int) error {
	if d.baud == baud {
		return nil
	}
	if err := d.port.SetMode(mode(baud)); err != nil {
		return fmt.Errorf("owuart: error while switching to %d baud: %w", baud, err)
	}
	d.baud = baud
	return nil
}

func (o *Opts) check() error {
	if o.ResetBaud <= 0 || o.DataBaud <= 0 {
		return errors.New("owuart: invalid baud rate")
	}
	return nil
}

func mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// symbol returns the character emitting a write slot for the lowest bit of b.
func symbol(b byte) byte {
	if b&1 != 0 {
		return 0xff
	}
	return 0x00
}

var errTimeout = busError("owuart: timeout waiting for echo")

// shortedBusError implements error and onewire.ShortedBusError.
type shortedBusError string

func (e shortedBusError) Error() string   { return string(e) }
func (e shortedBusError) IsShorted() bool { return true }
func (e shortedBusError) BusError() bool  { return true }

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }

var _ conn.Resource = &Dev{}
var _ onewire.Bus = &Dev{}
var _ romsearch.Link = &Dev{}
