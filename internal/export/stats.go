package export

import (
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/mxhost/tpulink/internal/session"
)

// WriteStatsCBOR encodes a stats snapshot as CBOR.
func WriteStatsCBOR(w io.Writer, st session.Stats) error {
	return cbor.NewEncoder(w).Encode(st)
}

// WriteStatsFile writes a stats snapshot to path as CBOR.
func WriteStatsFile(path string, st session.Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteStatsCBOR(f, st); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
