// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// devmgr - Device Manager Relays
//
// Runs one WebSocket relay per field device class (radar, camera, jammer,
// ADS-B) and provides client and PELCO tooling.

package main

import (
	"os"

	"github.com/Thermoquad/devmgr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
