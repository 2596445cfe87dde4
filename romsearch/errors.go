// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package romsearch

// Reasons for a search pass to report not-found. They are never returned by
// Search or the Session operations; Session.Failure reports the last one.
var (
	// ErrExhausted means the previous pass found the last device.
	ErrExhausted error = busError("romsearch: no more devices")
	// ErrNoPresence means no device answered the reset pulse.
	ErrNoPresence error = busError("romsearch: no device present")
	// ErrBusDropout means a bit and its complement both read as 1 mid-pass.
	ErrBusDropout error = busError("romsearch: devices stopped responding")
	// ErrCRC means the 64 bits read did not form a ROM with a valid CRC.
	ErrCRC error = busError("romsearch: ROM crc mismatch")
	// ErrZeroFamily means the ROM read had a family code of 0.
	ErrZeroFamily error = busError("romsearch: ROM has family code 0")
)

func isFailure(err error) bool {
	_, ok := err.(busError)
	return ok
}

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }
