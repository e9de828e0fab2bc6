// Package domain models hydrometeorological observations moving through the
// SHEF decode and encode paths.
//
// # Data Sources
//
// SHEF (Standard Hydrometeorological Exchange Format) products arrive as
// plain text, either as files dropped by an LDM/CHPS export or as raw
// product messages on a Kafka topic. Mesonet station readings arrive as a
// multi-section CSV export and are re-encoded to SHEF for downstream forecast
// systems.
//
// # SHEF Conventions
//
// Block types:
//
//	.E / .ER   one element, evenly spaced values:  .E LOC DATE TZ TIME/PE/DIxN/v/v/v
//	.A / .AR   one or more single values:          .A LOC DATE TZ DHhhmm/PE v
//	.B         tabular multi-site block terminated by .END (not decoded)
//	.E1 / .A1  continuation lines, content appended to the open block
//
// Physical element fields:
//
//	"HG"       stage, version defaults to RZZ
//	"HGIRZ"    first two characters are the element, [2:5] the version
//
// Interval codes ("DI" fields):
//
//	DIH1 = 1 hour, DIN15 / DIM15 = 15 minutes, DID1 = 1 day, DIS30 = 30 seconds
//
// Time zones:
//
//	"Z" is UTC. Two letter codes gain a trailing "T" ("CS" -> CST).
//	Single letter codes are local time with daylight saving ("C" -> America/Chicago).
//
// # Missing Values
//
//	Source token:       "M" (mesonet), "M"/"MM"/"-9999" in SHEF text.
//	Destination record: MissingValue (-math.MaxFloat32) with quality MissingQuality.
//	SHEF output:        MissingText ("-9999").
//
// # Destination Records
//
// A [TimeSeries] is the record handed to a sink: path, units and
// (epoch-millis, value, quality) samples. Sinks upsert by timestamp so
// replaying the same product is idempotent.
package domain
