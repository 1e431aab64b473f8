package dif

import (
	"bufio"
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"difutil/internal/debugid"
)

// proguardNamespace seeds content-derived mapping ids.
var proguardNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("guardsquare.com"))

var (
	proguardMapID    = regexp.MustCompile(`^#\s*pg_map_id\s*:(.*)$`)
	proguardLineInfo = regexp.MustCompile(`^\s+\d+:\d+:`)
)

// extractProguard derives a mapping's id. A declared "# pg_map_id:" header
// wins and is reported exactly as written; otherwise the id is a UUIDv5 of
// the file content.
func extractProguard(path string) (result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return result{}, err
	}

	var (
		declared    string
		hasDeclared bool
		classes     int
		r           result
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "#") {
			if m := proguardMapID.FindStringSubmatch(line); m != nil && !hasDeclared {
				declared, hasDeclared = strings.TrimSpace(m[1]), true
			}
			continue
		}
		switch {
		case proguardClassLine.MatchString(line):
			classes++
		case proguardLineInfo.MatchString(line):
			r.features.HasLineInfo = true
		}
	}
	if err := sc.Err(); err != nil {
		r.problem = "corrupt mapping: " + err.Error()
		return r, nil
	}

	r.features.HasSymbols = classes > 0
	r.payload = proguardPayload{declared: hasDeclared, classes: classes}

	if hasDeclared {
		id, err := debugid.Opaque(declared)
		if err != nil {
			r.problem = "corrupt mapping header"
			return r, nil
		}
		if classes == 0 {
			r.problem = "no class mappings"
			return r, nil
		}
		r.addID(id, "")
		return r, nil
	}
	if classes == 0 {
		r.problem = "no class mappings"
		return r, nil
	}
	r.addID(debugid.FromUUID(uuid.NewSHA1(proguardNamespace, data)), "")
	return r, nil
}
