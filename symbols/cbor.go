package symbols

import (
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode so the same table always encodes to the
// same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("symbols: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalCBOR serializes t to CBOR bytes.
func (t *Table) MarshalCBOR() ([]byte, error) {
	type plain Table
	return cborEncMode.Marshal((*plain)(t))
}

// UnmarshalCBOR deserializes a Table from CBOR bytes.
func UnmarshalCBOR(data []byte) (*Table, error) {
	var t Table
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("symbols: unmarshal table: %w", err)
	}
	if t.Version != Version {
		return nil, fmt.Errorf("symbols: unsupported table version %d", t.Version)
	}
	return &t, nil
}

// WriteCBOR writes t to w.
func (t *Table) WriteCBOR(w io.Writer) error {
	data, err := t.MarshalCBOR()
	if err != nil {
		return fmt.Errorf("symbols: marshal table: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ReadFile loads a CBOR table from path.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	return UnmarshalCBOR(data)
}

// WriteFile stores t at path as CBOR.
func (t *Table) WriteFile(path string) error {
	data, err := t.MarshalCBOR()
	if err != nil {
		return fmt.Errorf("symbols: marshal table: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("symbols: %w", err)
	}
	return nil
}
