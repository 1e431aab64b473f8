// Package debugid implements the canonical identifier that names the build a
// debug information file belongs to.
//
// An ID is either UUID-shaped (optionally carrying a Breakpad "age" appendix)
// or an opaque token such as a declared Proguard map id. Every ID has exactly
// one textual form, and Parse(id.String()) == id holds for every ID built by
// Parse or the byte constructors. Opaque keeps declared text as written, so
// it is the one constructor exempt from that rule.
package debugid

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	ErrEmpty   = errors.New("debugid: empty identifier")
	ErrInvalid = errors.New("debugid: invalid identifier")
)

// ID is a normalized debug identifier. The zero value is the nil ID.
// IDs are comparable with ==.
type ID struct {
	uuid   uuid.UUID
	age    uint32
	opaque string
}

// Nil is the zero identifier.
var Nil ID

// FromUUID wraps a UUID.
func FromUUID(u uuid.UUID) ID {
	return ID{uuid: u}
}

// FromBytes builds an ID from 16 raw bytes in UUID order (Mach-O LC_UUID).
func FromBytes(b []byte) (ID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return Nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return ID{uuid: u}, nil
}

// FromGUIDBytes builds an ID from the leading bytes of an identifier that is
// stored as a little-endian GUID (ELF build ids). Shorter input is zero
// padded, longer input is truncated to 16 bytes.
func FromGUIDBytes(b []byte) ID {
	var u uuid.UUID
	copy(u[:], b)
	u[0], u[1], u[2], u[3] = u[3], u[2], u[1], u[0]
	u[4], u[5] = u[5], u[4]
	u[6], u[7] = u[7], u[6]
	return ID{uuid: u}
}

// Parse normalizes s into an ID. Accepted forms:
//
//	3d1a0b2c-4e5f-6071-8293-a4b5c6d7f00d   hyphenated, any case
//	3D1A0B2C4E5F60718293A4B5C6D7F00D       compact
//	{3d1a0b2c-4e5f-6071-8293-a4b5c6d7f00d} braced
//	3D1A0B2C4E5F60718293A4B5C6D7F00D1      Breakpad (GUID + age)
//	3d1a0b2c-4e5f-6071-8293-a4b5c6d7f00d-1 GUID-age
//
// Anything else without whitespace is kept verbatim as an opaque ID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Nil, ErrEmpty
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return Nil, fmt.Errorf("%w: %q contains whitespace", ErrInvalid, s)
	}

	body := s
	if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		body = body[1 : len(body)-1]
	}
	compact := strings.ReplaceAll(body, "-", "")
	if len(compact) >= 32 && len(compact) <= 40 && isHex(compact) {
		raw, err := hex.DecodeString(compact[:32])
		if err != nil {
			return Nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		var u uuid.UUID
		copy(u[:], raw)
		var age uint64
		if tail := compact[32:]; tail != "" {
			age, err = strconv.ParseUint(tail, 16, 32)
			if err != nil {
				return Nil, fmt.Errorf("%w: age %q: %v", ErrInvalid, tail, err)
			}
		}
		return ID{uuid: u, age: uint32(age)}, nil
	}
	if strings.ContainsAny(s, "{}") {
		return Nil, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return ID{opaque: s}, nil
}

// Opaque keeps s (trimmed) verbatim as an opaque ID, even when it looks like
// a UUID or contains spaces.
func Opaque(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Nil, ErrEmpty
	}
	return ID{opaque: s}, nil
}

// Canonical returns what Parse makes of an opaque ID's text, so a declared
// "3D1A0B2C4E5F60718293A4B5C6D7F00D" compares equal to the parsed UUID. Other
// IDs, and opaque text Parse rejects, are returned unchanged.
func (id ID) Canonical() ID {
	if id.opaque == "" {
		return id
	}
	if parsed, err := Parse(id.opaque); err == nil {
		return parsed
	}
	return id
}

// MustParse is Parse that panics on error. Intended for tests and constants.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical text form: lower-case hyphenated UUID with a
// "-age" hex suffix when age is non-zero, or the opaque token verbatim.
func (id ID) String() string {
	if id.opaque != "" {
		return id.opaque
	}
	if id.age != 0 {
		return id.uuid.String() + "-" + strconv.FormatUint(uint64(id.age), 16)
	}
	return id.uuid.String()
}

// IsNil reports whether id is the zero identifier.
func (id ID) IsNil() bool { return id == Nil }

// IsOpaque reports whether id is a non-UUID token.
func (id ID) IsOpaque() bool { return id.opaque != "" }

// UUID returns the UUID part. ok is false for opaque ids.
func (id ID) UUID() (u uuid.UUID, ok bool) {
	if id.opaque != "" {
		return uuid.Nil, false
	}
	return id.uuid, true
}

// Age returns the Breakpad age appendix (zero when absent).
func (id ID) Age() uint32 { return id.age }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseAll parses every entry of ss, failing on the first invalid one.
func ParseAll(ss []string) ([]ID, error) {
	out := make([]ID, 0, len(ss))
	for _, s := range ss {
		id, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// AppendUnique appends id to ids unless already present, keeping order.
func AppendUnique(ids []ID, id ID) []ID {
	for _, have := range ids {
		if have == id {
			return ids
		}
	}
	return append(ids, id)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
