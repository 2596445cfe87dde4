// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/GermanBionicSystems/owbus/romsearch"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify ROM...",
	Short: "Check that devices are on the bus",
	Long: `Check that each ROM given answers a search on the bus.

A ROM is 16 hex digits in bus order, optionally separated by '-', ':' or '.',
or a periph address such as 0x740000070e41ac28.

Examples:
  owscan verify --adapter sim 28ac410e07000074 10-450736030800-e7`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	roms := make([]romsearch.ROM, 0, len(args))
	for _, a := range args {
		r, err := romsearch.ParseROM(a)
		if err != nil {
			return err
		}
		roms = append(roms, r)
	}
	m, release, err := openMaster()
	if err != nil {
		return fmt.Errorf("failed to open adapter: %w", err)
	}
	defer release()

	s := romsearch.New(m)
	w := output(cmd)
	for _, r := range roms {
		ok, err := s.Verify(r)
		if err != nil {
			return fmt.Errorf("verify %s: %w", r, err)
		}
		state := "absent"
		if ok {
			state = "present"
		} else {
			logf("%s: %v", r, s.Failure())
		}
		fmt.Fprintf(w, "%s  %-8s %s\n", r, familyName(r.Family()), state)
	}
	return nil
}
