// Package testutil builds ERG file fixtures and comparers shared by tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Channel is one channel definition written by InfoText.
type Channel struct {
	Name   string
	Type   string
	Unit   string
	Factor string // written only when non-empty
	Offset string // written only when non-empty
}

// InfoText renders an info file. byteOrder is written verbatim.
func InfoText(byteOrder string, dateInSeconds int64, channels ...Channel) string {
	var b strings.Builder
	b.WriteString("#INFOFILE1.1 - Do not remove this line!\n")
	b.WriteString("File.Format = erg\n")
	fmt.Fprintf(&b, "File.ByteOrder = %s\n", byteOrder)
	fmt.Fprintf(&b, "File.DateInSeconds = %d\n", dateInSeconds)
	b.WriteString("\n")
	for i, ch := range channels {
		n := i + 1
		fmt.Fprintf(&b, "File.At.%d.Name =\t%s\n", n, ch.Name)
		fmt.Fprintf(&b, "File.At.%d.Type =\t%s\n", n, ch.Type)
		if ch.Unit != "" {
			fmt.Fprintf(&b, "Quantity.%s.Unit =\t%s\n", ch.Name, ch.Unit)
		}
		if ch.Factor != "" {
			fmt.Fprintf(&b, "Quantity.%s.Factor = %s\n", ch.Name, ch.Factor)
		}
		if ch.Offset != "" {
			fmt.Fprintf(&b, "Quantity.%s.Offset = %s\n", ch.Name, ch.Offset)
		}
	}
	return b.String()
}

// Payload writes a zeroed 16 byte header followed by every record field in
// order. Fields must be fixed-size values accepted by binary.Write.
func Payload(order binary.ByteOrder, records ...[]any) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 16))
	for _, rec := range records {
		for _, field := range rec {
			if err := binary.Write(&buf, order, field); err != nil {
				panic(fmt.Sprintf("testutil: writing %T: %v", field, err))
			}
		}
	}
	return buf.Bytes()
}

// WriteERG writes <dir>/<name>.info and <dir>/<name> and returns the path of
// the binary file.
func WriteERG(t testing.TB, dir, name, info string, payload []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path+".info", []byte(info), 0644); err != nil {
		t.Fatalf("writing info file: %v", err)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatalf("writing erg file: %v", err)
	}
	return path
}

// ApproxFloats compares float64 values with a small relative tolerance.
var ApproxFloats = cmpopts.EquateApprox(1e-9, 1e-12)

// FloatsEqual reports whether two float slices match within ApproxFloats.
func FloatsEqual(want, got []float64) bool {
	return cmp.Equal(want, got, ApproxFloats)
}

// FloatsDiff returns a readable diff for failed FloatsEqual checks.
func FloatsDiff(want, got []float64) string {
	return cmp.Diff(want, got, ApproxFloats)
}
