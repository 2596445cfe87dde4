// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/GermanBionicSystems/owbus/ds18b20"
	"github.com/GermanBionicSystems/owbus/ds248x"
	"github.com/GermanBionicSystems/owbus/owuart"
	"github.com/GermanBionicSystems/owbus/romsearch"
	"github.com/GermanBionicSystems/owbus/romsearch/romsearchtest"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/host/v3"
)

// master is a bus master usable both by romsearch and by periph drivers.
type master interface {
	onewire.Bus
	romsearch.Link
}

// openMaster opens the bus master selected by --adapter. The returned
// function releases it.
func openMaster() (master, func(), error) {
	logf("opening %s adapter", adapterType)
	switch adapterType {
	case "uart":
		d, err := owuart.Open(portName, &owuart.DefaultOpts)
		if err != nil {
			return nil, nil, err
		}
		return d, func() { _ = d.Close() }, nil
	case "ds248x":
		if _, err := host.Init(); err != nil {
			return nil, nil, err
		}
		b, err := i2creg.Open(i2cName)
		if err != nil {
			return nil, nil, err
		}
		d, err := ds248x.New(b, i2cAddr, &ds248x.DefaultOpts)
		if err != nil {
			_ = b.Close()
			return nil, nil, err
		}
		logf("found %s", d)
		return d, func() { _ = b.Close() }, nil
	case "sim", "simulator":
		b, err := newSimBus(simROMs)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown adapter %q, want uart, ds248x or sim", adapterType)
}

// defaultSimROMs populates the simulated bus when no --sim-rom is given.
var defaultSimROMs = []string{
	"28ac410e07000074",
	"2802000000000070",
	"2801000000000029",
	"10450736030800e7",
	"010100000000000a",
}

// Scratchpads with a completed conversion, 25.0625°C and 25°C.
var (
	simSpadDS18B20 = []byte{0x91, 0x01, 0x4b, 0x46, 0x3f, 0xff, 0x0f, 0x10, 0xc5}
	simSpadDS18S20 = []byte{0x32, 0x00, 0x4b, 0x46, 0xff, 0xff, 0x0c, 0x10, 0x6b}
)

func newSimBus(roms []string) (*romsearchtest.Bus, error) {
	if len(roms) == 0 {
		roms = defaultSimROMs
	}
	b := romsearchtest.New()
	for _, s := range roms {
		r, err := romsearch.ParseROM(s)
		if err != nil {
			return nil, err
		}
		d := romsearchtest.Device{ROM: r}
		switch ds18b20.Family(r.Family()) {
		case ds18b20.DS18B20:
			d.Memory = simSpadDS18B20
		case ds18b20.DS18S20:
			d.Memory = simSpadDS18S20
		}
		b.Devices = append(b.Devices, d)
	}
	logf("simulating %d device(s)", len(b.Devices))
	return b, nil
}
