// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pelco

// Checksum computes the PELCO additive checksum over the frame body
// (address, command1, command2, data1, data2). Overflow wraps modulo 256.
func Checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return sum
}
