// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cmd implements the owscan command tree.
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose     bool
	colorOut    bool
	adapterType string
	portName    string
	i2cName     string
	i2cAddr     uint16
	simROMs     []string
)

var rootCmd = &cobra.Command{
	Use:   "owscan",
	Short: "1-wire bus scanner",
	Long: `Enumerate, verify and read the devices on a 1-wire bus.

The bus master is a UART with TX and RX tied to the data line, a DS2482/DS2483
I²C bridge, or a simulated bus.

Examples:
  owscan scan --adapter uart --port /dev/ttyUSB0     # List every device
  owscan scan --adapter ds248x --family 0x28         # List DS18B20 sensors only
  owscan verify 28ac410e07000074                     # Check a device is present
  owscan temp --adapter sim                          # Read simulated sensors`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetFlags(log.Lmicroseconds)
		log.SetPrefix("owscan: ")
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	f.BoolVar(&colorOut, "color", false, "show a colour swatch per ROM")
	f.StringVarP(&adapterType, "adapter", "a", "uart",
		"bus master (uart, ds248x, sim)")
	f.StringVarP(&portName, "port", "p", "/dev/ttyUSB0",
		"uart: serial port name")
	f.StringVar(&i2cName, "i2c", "",
		"ds248x: I²C bus name, the first one found if empty")
	f.Uint16Var(&i2cAddr, "addr", 0x18,
		"ds248x: I²C address")
	f.StringArrayVar(&simROMs, "sim-rom", nil,
		"sim: ROM of a simulated device (repeatable, default set if none)")
}

// logf logs only when --verbose is set.
func logf(format string, v ...interface{}) {
	if verbose {
		log.Printf(format, v...)
	}
}
