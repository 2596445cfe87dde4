// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// owscan enumerates the devices on a 1-wire bus.
package main

import "github.com/GermanBionicSystems/owbus/cmd/owscan/cmd"

func main() {
	cmd.Execute()
}
