// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/GermanBionicSystems/owbus/romsearch"
	"github.com/spf13/cobra"
)

var (
	scanFamily     string
	scanAlarm      bool
	scanSkipFamily bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the devices on the bus",
	Long: `List the ROM of the devices on the bus, in search order.

Examples:
  owscan scan --adapter sim                          # Every device
  owscan scan --adapter sim --family 0x28            # DS18B20 sensors only
  owscan scan --adapter sim --alarm                  # Devices in alarm state
  owscan scan --adapter sim --skip-family            # One device per family`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanFamily, "family", "f", "",
		"only list devices with this family code (e.g. 0x28)")
	scanCmd.Flags().BoolVar(&scanAlarm, "alarm", false,
		"only list devices in alarm state")
	scanCmd.Flags().BoolVar(&scanSkipFamily, "skip-family", false,
		"list one device per family")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanAlarm && (scanFamily != "" || scanSkipFamily) {
		return errors.New("--alarm cannot be combined with --family or --skip-family")
	}
	if scanFamily != "" && scanSkipFamily {
		return errors.New("--family cannot be combined with --skip-family")
	}
	m, release, err := openMaster()
	if err != nil {
		return fmt.Errorf("failed to open adapter: %w", err)
	}
	defer release()

	s := romsearch.New(m)
	var roms []romsearch.ROM
	switch {
	case scanFamily != "":
		f, perr := strconv.ParseUint(scanFamily, 0, 8)
		if perr != nil {
			return fmt.Errorf("invalid family %q: %w", scanFamily, perr)
		}
		logf("searching family %#02x on %s", f, m)
		roms, err = s.EnumerateFamily(byte(f))
	case scanSkipFamily:
		logf("searching one device per family on %s", m)
		roms, err = s.EnumerateFamilies()
	default:
		logf("searching on %s, alarm only: %t", m, scanAlarm)
		roms, err = s.Enumerate(scanAlarm)
	}

	w := output(cmd)
	fmt.Fprintf(w, "Found %d device(s)\n", len(roms))
	for _, r := range roms {
		fmt.Fprintf(w, "  %s  %-8s %s\n", r, familyName(r.Family()), swatch(r))
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return nil
}

// familyNames maps the common family codes to a part number.
var familyNames = map[byte]string{
	0x01: "DS2401",
	0x05: "DS2405",
	0x10: "DS18S20",
	0x12: "DS2406",
	0x1d: "DS2423",
	0x1f: "DS2409",
	0x20: "DS2450",
	0x22: "DS1822",
	0x23: "DS2433",
	0x26: "DS2438",
	0x28: "DS18B20",
	0x29: "DS2408",
	0x2d: "DS2431",
	0x3a: "DS2413",
	0x3b: "DS1825",
	0x42: "DS28EA00",
}

func familyName(f byte) string {
	if n, ok := familyNames[f]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", f)
}
