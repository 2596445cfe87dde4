// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owuart drives a 1-wire bus through a UART in half-duplex mode, the
// TX and RX lines tied together on the data line.
//
// Every 1-wire time slot is one UART character: at 115200 baud the start bit
// is the ~8.7µs low pulse that opens a slot, so sending 0xff releases the
// line (write 1 or read) and sending 0x00 holds it low for a write 0. The
// character read back is the line as sampled; a device sending a 0 pulls the
// low bits of a 0xff down. The reset pulse is a 0xf0 sent at 9600 baud, and
// a presence pulse shows up as a modified echo.
//
// Datasheet
//
// https://www.analog.com/en/resources/technical-articles/using-a-uart-to-implement-a-1wire-bus-master.html
package owuart
