package harmony

import "strconv"

// CamelotKey is a position on the harmonic wheel: 1-12 plus mode A (minor)
// or B (major).
type CamelotKey struct {
	Position int
	Mode     byte // 'A' or 'B'
}

// keyToCamelot maps detected musical keys (minor keys carry an "m" suffix)
// to their Camelot wheel notation.
var keyToCamelot = map[string]string{
	"C": "8B", "C#": "3B", "Db": "3B", "D": "10B", "D#": "5B", "Eb": "5B",
	"E": "12B", "F": "7B", "F#": "2B", "Gb": "2B", "G": "9B", "G#": "4B",
	"Ab": "4B", "A": "11B", "A#": "6B", "Bb": "6B", "B": "1B",

	"Cm": "5A", "C#m": "12A", "Dbm": "12A", "Dm": "7A", "D#m": "2A", "Ebm": "2A",
	"Em": "9A", "Fm": "4A", "F#m": "11A", "Gbm": "11A", "Gm": "6A", "G#m": "1A",
	"Abm": "1A", "Am": "8A", "A#m": "3A", "Bbm": "3A", "Bm": "10A",
}

// KeyToCamelot converts a musical key such as "Am" or "F#" to Camelot
// notation. Returns "" for keys that don't map onto the wheel.
func KeyToCamelot(key string) string {
	return keyToCamelot[key]
}

// ParseCamelot parses a Camelot label such as "8B" or "12A".
func ParseCamelot(s string) (CamelotKey, bool) {
	if len(s) < 2 {
		return CamelotKey{}, false
	}
	mode := s[len(s)-1]
	if mode == 'a' {
		mode = 'A'
	} else if mode == 'b' {
		mode = 'B'
	}
	if mode != 'A' && mode != 'B' {
		return CamelotKey{}, false
	}
	pos, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || pos < 1 || pos > 12 {
		return CamelotKey{}, false
	}
	return CamelotKey{Position: pos, Mode: mode}, true
}

// String returns the Camelot label, e.g. "8B".
func (k CamelotKey) String() string {
	return strconv.Itoa(k.Position) + string(k.Mode)
}

// Compatible reports whether two wheel positions mix harmonically:
// the same key, neighbours on the wheel in the same mode (wrapping 12 to 1),
// or the relative major/minor pair sharing a position.
func Compatible(a, b CamelotKey) bool {
	if a.Position == b.Position && a.Mode == b.Mode {
		return true
	}
	if a.Mode == b.Mode {
		diff := a.Position - b.Position
		if diff < 0 {
			diff = -diff
		}
		if diff == 1 || diff == 11 {
			return true
		}
	}
	return a.Position == b.Position && a.Mode != b.Mode
}

// CompatibleKeys is Compatible over raw labels; malformed labels are
// never compatible with anything.
func CompatibleKeys(a, b string) bool {
	ka, ok := ParseCamelot(a)
	if !ok {
		return false
	}
	kb, ok := ParseCamelot(b)
	if !ok {
		return false
	}
	return Compatible(ka, kb)
}
