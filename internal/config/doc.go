// Package config loads and validates stormcomplete configuration.
//
// Configuration is read once at setup from a TOML or YAML file (chosen by
// extension) and is immutable afterwards. The file has fixed sections for
// the core and a free-form section per completion source:
//
//	[completion]
//	boundary_chars = " \t()[]{}"
//	parallel_threshold = 2048
//	chunk_size = 512
//
//	[log]
//	level = "info"
//
//	[lua]
//	init = "predicates.lua"
//
//	[sources.words]
//	enable = true
//	min_length = 3
//
// Source sections are kept as raw maps here; the source registry decodes
// them into each source's typed configuration with DecodeStrict.
//
// Every validation failure is reported as a *BadConfigError carrying the
// dot-separated path of the offending key. Failures are collected into a
// *BadConfigErrors so a user sees all of them at once.
package config
