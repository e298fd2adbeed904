// Package charset resolves user-selected character encoding labels and wraps
// readers so that payloads are decoded to UTF-8 before parsing.
package charset

import (
	"errors"
	"fmt"
	"io"
	"strings"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding is returned for labels no decoder is registered for.
var ErrUnknownEncoding = errors.New("unknown encoding")

// Option is an encoding offered to users for selection.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var options = []Option{
	{Key: "utf-8", Label: "UTF-8"},
	{Key: "gbk", Label: "GBK"},
	{Key: "gb18030", Label: "GB18030"},
	{Key: "big5", Label: "Big5"},
	{Key: "shift_jis", Label: "Shift_JIS"},
	{Key: "euc-jp", Label: "EUC-JP"},
	{Key: "euc-kr", Label: "EUC-KR"},
	{Key: "iso-8859-1", Label: "ISO-8859-1"},
	{Key: "windows-1252", Label: "Windows-1252"},
	{Key: "windows-1251", Label: "Windows-1251"},
	{Key: "utf-16le", Label: "UTF-16LE"},
	{Key: "utf-16be", Label: "UTF-16BE"},
}

// Options returns the encodings offered for selection, UTF-8 first.
func Options() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

// Lookup resolves a WHATWG encoding label. An empty label means UTF-8.
// The returned name is the canonical one.
func Lookup(label string) (encoding.Encoding, string, error) {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" || label == "utf8" {
		label = "utf-8"
	}
	enc, name := htmlcharset.Lookup(label)
	if enc == nil {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	return enc, name, nil
}

// NewReader wraps r so that reads yield UTF-8. A leading byte order mark
// overrides the label and is stripped.
func NewReader(r io.Reader, label string) (io.Reader, error) {
	enc, _, err := Lookup(label)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}
