// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package romsearch implements the Dallas/Maxim 1-wire ROM search (Maxim
// application note 187) on top of four bit-level bus primitives.
//
// Each search pass walks the implicit binary tree formed by the 64-bit ROM
// codes of the devices on the bus, one bit position at a time. Devices answer
// every position with their bit and its complement; when both read as 0 the
// devices disagree and the master picks a branch. The pass records the
// deepest branch it resolved to 0 so that the next pass can take the 1
// branch there, which lets a single integer cursor resume the enumeration
// without keeping the tree around.
//
// A Session holds the search state of one bus and exposes the classic
// First/Next/Verify/TargetSetup/FamilySkipSetup operations. The bus itself is
// reached through a Link, implemented by the UART driver in owuart, by the
// ds248x I²C bridge and by the simulator in romsearchtest.
//
// A Session is not safe for concurrent use: a pass spans ~200 sequential bus
// slots and the partial state is visible between them.
package romsearch
