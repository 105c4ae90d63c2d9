package encoding

import (
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// FromUTF8 converts a UTF-8 string to Windows-1252 bytes for the CSV export
// consumed by legacy spreadsheet tooling. Characters outside the charmap are
// substituted rather than failing the export.
func FromUTF8(s string) []byte {
	if s == "" {
		return nil
	}

	encoder := xencoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	encoded, err := encoder.Bytes([]byte(s))
	if err != nil {
		// Fallback: ship the raw UTF-8 bytes, still readable in most tools
		return []byte(s)
	}

	return encoded
}
