// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"image/color"
	"io"
	"os"

	"github.com/GermanBionicSystems/owbus/romsearch"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
)

// output returns where a command prints. ANSI sequences are translated when
// --color is set and the output is the console.
func output(cmd *cobra.Command) io.Writer {
	w := cmd.OutOrStdout()
	if colorOut && w == os.Stdout {
		return colorable.NewColorableStdout()
	}
	return w
}

// swatch returns a coloured block derived from the serial number of r, so the
// same device is recognizable from one scan to the next. It is empty unless
// --color is set.
func swatch(r romsearch.ROM) string {
	if !colorOut {
		return ""
	}
	c := color.NRGBA{R: r[1] ^ r[4], G: r[2] ^ r[5], B: r[3] ^ r[6], A: 255}
	return ansi256.Default.Block(c) + "\033[0m"
}
