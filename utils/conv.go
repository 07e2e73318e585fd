package utils

import (
	"bytes"

	"github.com/mogaika/ritofmt/config"

	"golang.org/x/text/transform"
)

// BytesToString converts a fixed size or zero terminated name field to a
// string using the configured encoding. Bytes after the first NUL are
// ignored.
func BytesToString(bs []byte) string {
	bs = bs[:BytesStringLength(bs)]
	s, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), bs)
	if err != nil {
		return string(bs)
	}
	return string(s)
}

func BytesStringLength(bs []byte) int {
	if l := bytes.IndexByte(bs, 0); l == -1 {
		return len(bs)
	} else {
		return l
	}
}

// FixedName returns the bytes of a fixed size name field up to its
// terminator, copied out of the source buffer.
func FixedName(bs []byte) []byte {
	return append([]byte(nil), bs[:BytesStringLength(bs)]...)
}
