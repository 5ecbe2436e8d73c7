// Package textfile reads small text files (password files, include/exclude
// lists) that may carry a byte-order mark or UTF-16 encoding, normalizing
// them to UTF-8 so the rest of the codebase never has to think about it.
package textfile

import (
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Read returns the contents of name decoded to UTF-8, transparently
// stripping a UTF-8 BOM or decoding a UTF-16 BOM if present.
func Read(name string) ([]byte, error) {
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	e := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(e, raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}
