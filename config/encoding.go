package config

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// Names inside assets are single byte strings. Hashes are always taken over
// the raw bytes, the charmap only affects the strings handed to callers.
var nameCharmap = charmap.Windows1252

// charmapKey folds "Windows 1251", "windows-1251" and "WINDOWS_1251" together.
func charmapKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(name))
}

func charmapsByKey() map[string]*charmap.Charmap {
	byKey := make(map[string]*charmap.Charmap, len(charmap.All))
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			byKey[charmapKey(cm.String())] = cm
		}
	}
	return byKey
}

// SetEncoding selects the charmap used to decode names. Call it once at
// startup, before any decoding.
func SetEncoding(name string) error {
	cm, ok := charmapsByKey()[charmapKey(name)]
	if !ok {
		return errors.Errorf("Failed to find encoding %q", name)
	}
	nameCharmap = cm
	return nil
}

func ListEncodings() []string {
	list := make([]string, 0, len(charmap.All))
	for _, cm := range charmapsByKey() {
		list = append(list, cm.String())
	}
	sort.Strings(list)
	return list
}

func GetEncoding() *charmap.Charmap {
	return nameCharmap
}
