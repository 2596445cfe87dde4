// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owbus is a 1-wire bus master for periph.
//
// romsearch enumerates the devices on a bus with the Dallas ROM search, over
// any link offering reset, bit and byte slots. owuart implements the link on
// a UART, ds248x on a DS2482/DS2483 I²C bridge; both are also onewire.Bus so
// drivers such as ds18b20 run on them. cmd/owscan is a command line scanner.
package owbus
