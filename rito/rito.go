// Package rito identifies and dispatches the binary asset formats of the
// r3d2 engine family. Format decoders live in sub-packages and register
// themselves from init(), the same way wad handlers are registered.
package rito

import (
	"github.com/pkg/errors"
)

// Handler decodes one asset of a registered kind from an in-memory buffer.
type Handler func(data []byte, f Format) (asset interface{}, consumed int, err error)

var gHandlers = make(map[Kind]Handler)

func SetHandler(kind Kind, h Handler) {
	gHandlers[kind] = h
}

func GetHandler(kind Kind) (Handler, bool) {
	h, ok := gHandlers[kind]
	return h, ok
}

// Decode sniffs the asset at the current position of src and hands it to the
// decoder registered for its kind.
func Decode(src ByteSource) (interface{}, Format, error) {
	f, err := Sniff(src)
	if err != nil {
		return nil, f, err
	}
	h, ok := gHandlers[f.Kind()]
	if !ok {
		return nil, f, errors.Errorf("no handler registered for %v", f.Kind())
	}

	var asset interface{}
	err = DecodeFrom(src, func(data []byte) (int, error) {
		var consumed int
		var err error
		asset, consumed, err = h(data, f)
		return consumed, err
	})
	if err != nil {
		return nil, f, errors.Wrapf(err, "decoding %v", f)
	}
	return asset, f, nil
}

// DecodeBytes is Decode for an asset that is already in memory.
func DecodeBytes(data []byte) (interface{}, Format, error) {
	f, err := Identify(data)
	if err != nil {
		return nil, f, err
	}
	h, ok := gHandlers[f.Kind()]
	if !ok {
		return nil, f, errors.Errorf("no handler registered for %v", f.Kind())
	}
	asset, _, err := h(data, f)
	if err != nil {
		return nil, f, errors.Wrapf(err, "decoding %v", f)
	}
	return asset, f, nil
}

// Expect identifies data and fails unless it is of the wanted kind.
func Expect(data []byte, kind Kind) (Format, error) {
	f, err := Identify(data)
	if err != nil {
		return f, err
	}
	if f.Kind() != kind {
		return f, Unsupported("header", 0, "expected %v, got %v", kind, f)
	}
	return f, nil
}
