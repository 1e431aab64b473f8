package dif

import (
	"fmt"
	"strings"
)

// Kind tags the debug information file variant.
type Kind string

const (
	KindDSYM     Kind = "dsym"     // dSYM bundle or Mach-O object
	KindELF      Kind = "elf"      // ELF object with a build id
	KindProguard Kind = "proguard" // Proguard / R8 mapping
	KindBreakpad Kind = "breakpad" // Breakpad text symbols
)

// Kinds lists all variants in detection priority order.
func Kinds() []Kind {
	return []Kind{KindDSYM, KindELF, KindBreakpad, KindProguard}
}

// ParseKind parses a kind name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindDSYM, KindELF, KindProguard, KindBreakpad:
		return k, nil
	}
	return "", fmt.Errorf("dif: unknown type %q (want dsym, elf, proguard or breakpad)", s)
}

func (k Kind) String() string { return string(k) }

// Set implements pflag.Value.
func (k *Kind) Set(s string) error {
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Type implements pflag.Value.
func (k *Kind) Type() string { return "type" }

// KindList is a repeatable kind flag.
type KindList []Kind

func (l *KindList) String() string {
	parts := make([]string, len(*l))
	for i, k := range *l {
		parts[i] = string(k)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (l *KindList) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		k, err := ParseKind(part)
		if err != nil {
			return err
		}
		*l = append(*l, k)
	}
	return nil
}

func (l *KindList) Type() string { return "type" }

// Contains reports whether k is listed. An empty list contains every kind.
func (l KindList) Contains(k Kind) bool {
	if len(l) == 0 {
		return true
	}
	for _, have := range l {
		if have == k {
			return true
		}
	}
	return false
}
