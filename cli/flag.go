package cli

import "time"

// StringFlag is a flag parsed as a string.
//
// - implements cli.Flag
type StringFlag struct {
	Name  string
	Usage string
	Value string
}

// Flag implements cli.Flag.
func (StringFlag) Flag() {}

// DurationFlag is a flag parsed as a duration like "250ms" or "1m".
//
// - implements cli.Flag
type DurationFlag struct {
	Name  string
	Usage string
	Value time.Duration
}

// Flag implements cli.Flag.
func (DurationFlag) Flag() {}

// IntFlag is a flag parsed as an integer.
//
// - implements cli.Flag
type IntFlag struct {
	Name  string
	Usage string
	Value int
}

// Flag implements cli.Flag.
func (IntFlag) Flag() {}

// BoolFlag is a flag that is true when present.
//
// - implements cli.Flag
type BoolFlag struct {
	Name  string
	Usage string
	Value bool
}

// Flag implements cli.Flag.
func (BoolFlag) Flag() {}
