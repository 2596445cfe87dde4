// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/GermanBionicSystems/owbus/ds18b20"
	"github.com/GermanBionicSystems/owbus/romsearch"
	"github.com/spf13/cobra"
)

var tempResolution int

var tempCmd = &cobra.Command{
	Use:   "temp",
	Short: "Read the DS18B20 and DS18S20 temperature sensors",
	Long: `Find the temperature sensors on the bus with a family targeted search,
start a conversion on all of them and print the results.

Examples:
  owscan temp --adapter sim
  owscan temp --adapter ds248x --resolution 12`,
	Args: cobra.NoArgs,
	RunE: runTemp,
}

func init() {
	rootCmd.AddCommand(tempCmd)

	tempCmd.Flags().IntVarP(&tempResolution, "resolution", "r", 10,
		"conversion resolution in bits (9..12)")
}

func runTemp(cmd *cobra.Command, args []string) error {
	m, release, err := openMaster()
	if err != nil {
		return fmt.Errorf("failed to open adapter: %w", err)
	}
	defer release()

	devs, err := ds18b20.Discover(m, romsearch.New(m), tempResolution)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	w := output(cmd)
	if len(devs) == 0 {
		fmt.Fprintln(w, "No temperature sensor found")
		return nil
	}
	logf("converting on %d sensor(s) at %d bits", len(devs), tempResolution)
	if err := ds18b20.ConvertAll(m, tempResolution); err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	for _, d := range devs {
		r := romsearch.FromAddress(d.Addr())
		t, err := d.LastTemp()
		if err != nil {
			fmt.Fprintf(w, "%s  %-8s %v\n", r, d.Family(), err)
			continue
		}
		fmt.Fprintf(w, "%s  %-8s %s %s\n", r, d.Family(), t, swatch(r))
	}
	return nil
}
