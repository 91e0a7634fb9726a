// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package devcmd holds the frozen command tables of each device class.
//
// A client addresses a command by its numeric code. Codes are unique within
// a class table and never change at runtime; tables are assembled once at
// package initialisation and a duplicate name or code panics there.
package devcmd

import (
	"fmt"
	"sort"
	"strings"
)

// Code identifies a command within one device class
type Code int

// Class names a device class
type Class string

// Device classes
const (
	ClassRadar  Class = "radar"
	ClassCamera Class = "camera"
	ClassJammer Class = "jammer"
	ClassADSB   Class = "adsb"
)

// Entry is one named command of a table
type Entry struct {
	Name string
	Code Code
}

// Table is an immutable name <-> code mapping for one device class
type Table struct {
	class  Class
	byCode map[Code]string
	byName map[string]Code
	codes  []Code
}

// MustTable builds a table from literal entries.
// Panics on a duplicate name or code.
func MustTable(class Class, entries ...Entry) *Table {
	t := &Table{
		class:  class,
		byCode: make(map[Code]string, len(entries)),
		byName: make(map[string]Code, len(entries)),
		codes:  make([]Code, 0, len(entries)),
	}
	for _, e := range entries {
		if prev, dup := t.byCode[e.Code]; dup {
			panic(fmt.Sprintf("devcmd: %s code %d used by both %s and %s", class, e.Code, prev, e.Name))
		}
		if _, dup := t.byName[e.Name]; dup {
			panic(fmt.Sprintf("devcmd: %s command %s defined twice", class, e.Name))
		}
		t.byCode[e.Code] = e.Name
		t.byName[e.Name] = e.Code
		t.codes = append(t.codes, e.Code)
	}
	sort.Slice(t.codes, func(i, j int) bool { return t.codes[i] < t.codes[j] })
	return t
}

// Class returns the device class the table belongs to
func (t *Table) Class() Class {
	return t.class
}

// Contains reports whether code is a known command
func (t *Table) Contains(code Code) bool {
	_, ok := t.byCode[code]
	return ok
}

// Codes returns every code in ascending order
func (t *Table) Codes() []Code {
	out := make([]Code, len(t.codes))
	copy(out, t.codes)
	return out
}

// Name returns the symbolic name of code
func (t *Table) Name(code Code) (string, bool) {
	name, ok := t.byCode[code]
	return name, ok
}

// Lookup returns the code registered under name
func (t *Table) Lookup(name string) (Code, bool) {
	code, ok := t.byName[name]
	return code, ok
}

// Entries returns the table in code order
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.codes))
	for _, c := range t.codes {
		out = append(out, Entry{Name: t.byCode[c], Code: c})
	}
	return out
}

// String lists the table as {"NAME":code,...} in code order, the form
// command-line clients print as a help line
func (t *Table) String() string {
	parts := make([]string, 0, len(t.codes))
	for _, c := range t.codes {
		parts = append(parts, fmt.Sprintf("%q:%d", t.byCode[c], c))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ForClass returns the built-in table of a device class
func ForClass(class Class) (*Table, error) {
	switch class {
	case ClassRadar:
		return Radar, nil
	case ClassCamera:
		return Camera, nil
	case ClassJammer:
		return Jammer, nil
	case ClassADSB:
		return ADSB, nil
	}
	return nil, fmt.Errorf("unknown device class %q", class)
}

// Classes returns every device class in relay port order
func Classes() []Class {
	return []Class{ClassRadar, ClassCamera, ClassJammer, ClassADSB}
}
