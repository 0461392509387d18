// Package erg provides a high-level API for reading CarMaker ERG result
// files.
//
// # Overview
//
// An ERG result consists of two files: a text info file "<name>.erg.info"
// describing byte order, start time and channel layout, and the binary
// "<name>.erg" holding a 16 byte header followed by fixed-width records. This
// package pairs the two, caches parsed info files and offers exports on top of
// the decoded measurement:
//
//   - Channel reads in physical or raw units
//   - JSON documents for inspection and stream processing
//   - Tables with expression based row filters and CSV output
//   - Derived channels computed from CEL expressions
//
// # Quick Start
//
//	m, err := erg.Open("Run_001.erg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	speed, err := m.Get("Car.v", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(speed.Unit, speed.Samples.Float64s())
//
// # Custom Reader Instance
//
//	reader := erg.NewReader(
//	    erg.WithLogger(logger),
//	    erg.WithTextEncoding(charmap.ISO8859_1),
//	)
//	m, err := reader.Open(ctx, "Run_001.erg")
//
// # Configuration Options
//
//   - WithLogger(*slog.Logger): Custom logging
//   - WithCaching(bool): Cache parsed info files per path (default on)
//   - WithTextEncoding(encoding.Encoding): Encoding of byte blob channels
//   - WithChannels(...string): Restrict exports to the named channels
//
// # Derived Channels
//
// Derivations are CEL expressions evaluated once per record. Channel names
// are mapped to identifiers by Identifier, so "Car.v" is available as Car_v:
//
//	derivations:
//	  - name: Car.v_kmh
//	    unit: km/h
//	    expr: Car_v * 3.6
//
// Load them with LoadDerivations and apply them with Derive.
//
// # Thread Safety
//
// A Reader may be shared between goroutines. A Measurement may be read
// concurrently, but Derive and Append must not run concurrently with other
// calls on the same Measurement.
package erg
