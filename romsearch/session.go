// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package romsearch

import (
	"fmt"
)

// Session enumerates the devices of one bus.
type Session struct {
	link    Link
	state   State
	failure error
}

// New returns a Session in the initial state.
func New(l Link) *Session {
	return &Session{link: l}
}

// ROM returns the last discovered ROM.
func (s *Session) ROM() ROM {
	return s.state.ROM
}

// State returns a copy of the search state.
func (s *Session) State() State {
	return s.state
}

// Failure returns why the last operation did not find a device: one of the
// Err values of this package, or the link error. It is nil after a device was
// found.
func (s *Session) Failure() error {
	return s.failure
}

// First restarts the enumeration and finds the first device.
//
// Under the 0-first tie break the first device is the one whose ROM, read in
// transmission order, is the smallest.
func (s *Session) First() (bool, error) {
	s.state.Reset()
	return s.search(cmdSearchROM)
}

// Next finds the next device, resuming at the last discrepancy. It returns
// false once the last device was found, until First or TargetSetup is called.
func (s *Session) Next() (bool, error) {
	return s.search(cmdSearchROM)
}

// Verify returns true if the device with the given ROM is on the bus.
//
// The search state is saved before and restored after the check on every
// path, so an enumeration in progress is not disturbed.
func (s *Session) Verify(rom ROM) (bool, error) {
	saved := s.state
	defer func() { s.state = saved }()

	s.state.ROM = rom
	s.state.LastDiscrepancy = 64
	s.state.Exhausted = false
	found, err := s.search(cmdSearchROM)
	return found && s.state.ROM == rom, err
}

// TargetSetup makes the next call to Next start with the devices of the given
// family code, if any is present.
func (s *Session) TargetSetup(family byte) {
	s.state.ROM = ROM{family}
	s.state.LastDiscrepancy = 64
	s.state.LastFamilyDiscrepancy = 0
	s.state.Exhausted = false
}

// FamilySkipSetup makes the next call to Next skip the remaining devices of
// the family of the last discovered device.
func (s *Session) FamilySkipSetup() {
	s.state.LastDiscrepancy = s.state.LastFamilyDiscrepancy
	s.state.LastFamilyDiscrepancy = 0
	if s.state.LastDiscrepancy == 0 {
		s.state.Exhausted = true
	}
}

// Enumerate restarts the enumeration and returns the ROM of every device on
// the bus, or of every device in alarm state if alarmOnly is true.
//
// An empty bus is not an error. If a pass fails, the devices found so far
// are returned with the failure, which implements onewire.BusError.
func (s *Session) Enumerate(alarmOnly bool) ([]ROM, error) {
	cmd := byte(cmdSearchROM)
	if alarmOnly {
		cmd = cmdAlarmSearch
	}
	s.state.Reset()
	var roms []ROM
	for {
		found, err := s.search(cmd)
		if err != nil {
			return roms, err
		}
		if !found {
			return roms, s.endOfList(len(roms), alarmOnly)
		}
		if contains(roms, s.state.ROM) {
			s.state.Reset()
			return roms, fmt.Errorf("romsearch: %s found twice", s.state.ROM)
		}
		roms = append(roms, s.state.ROM)
	}
}

// EnumerateFamily returns the ROM of every device with the given family code.
func (s *Session) EnumerateFamily(family byte) ([]ROM, error) {
	s.TargetSetup(family)
	var roms []ROM
	for {
		found, err := s.search(cmdSearchROM)
		if err != nil {
			return roms, err
		}
		if !found {
			return roms, s.endOfList(len(roms), false)
		}
		if s.state.ROM.Family() != family {
			return roms, nil
		}
		if contains(roms, s.state.ROM) {
			s.state.Reset()
			return roms, fmt.Errorf("romsearch: %s found twice", s.state.ROM)
		}
		roms = append(roms, s.state.ROM)
	}
}

// EnumerateFamilies returns one ROM per family code present on the bus,
// skipping the rest of a family with FamilySkipSetup after each hit.
func (s *Session) EnumerateFamilies() ([]ROM, error) {
	s.state.Reset()
	var roms []ROM
	for {
		found, err := s.search(cmdSearchROM)
		if err != nil {
			return roms, err
		}
		if !found {
			return roms, s.endOfList(len(roms), false)
		}
		roms = append(roms, s.state.ROM)
		s.FamilySkipSetup()
	}
}

func (s *Session) search(cmd byte) (bool, error) {
	err := search(s.link, &s.state, cmd)
	s.failure = err
	return result(err)
}

// endOfList tells apart a clean end of enumeration from a failed pass.
//
// When no device is in alarm state nobody answers the first bit of an alarm
// search, which reads as a dropout.
func (s *Session) endOfList(n int, alarmOnly bool) error {
	switch s.failure {
	case ErrExhausted:
		return nil
	case ErrNoPresence:
		if n == 0 {
			return nil
		}
	case ErrBusDropout:
		if n == 0 && alarmOnly {
			return nil
		}
	}
	return s.failure
}

func contains(roms []ROM, r ROM) bool {
	for _, x := range roms {
		if x == r {
			return true
		}
	}
	return false
}
