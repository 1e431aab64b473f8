package dif

import (
	"bufio"
	"os"
	"strings"

	"difutil/internal/debugid"
)

// extractBreakpad reads the MODULE record on the first line of a Breakpad
// symbol file:
//
//	MODULE <os> <arch> <debug-id> <name>
func extractBreakpad(path string) (result, error) {
	f, err := os.Open(path)
	if err != nil {
		return result{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var r result
	if !sc.Scan() {
		r.problem = "malformed MODULE record"
		return r, nil
	}
	p, id, ok := parseModule(strings.TrimRight(sc.Text(), "\r"))
	if !ok {
		r.problem = "malformed MODULE record"
		return r, nil
	}

	for sc.Scan() {
		line := sc.Text()
		rec, rest, _ := strings.Cut(line, " ")
		switch rec {
		case "INFO":
			if v, ok := strings.CutPrefix(rest, "CODE_ID "); ok {
				code, _, _ := strings.Cut(strings.TrimSpace(v), " ")
				p.codeID = strings.ToLower(code)
			}
		case "FILE":
			r.features.HasSources = true
		case "FUNC", "PUBLIC":
			r.features.HasSymbols = true
		case "STACK":
			r.features.HasUnwindInfo = true
		}
	}
	if err := sc.Err(); err != nil {
		r.problem = "corrupt symbol file: " + err.Error()
		return r, nil
	}

	r.features.HasDebugInfo = r.features.HasSources
	r.payload = p
	r.addID(id, p.arch)
	return r, nil
}

func parseModule(line string) (breakpadPayload, debugid.ID, bool) {
	fields := strings.SplitN(line, " ", 5)
	if len(fields) != 5 || fields[0] != "MODULE" {
		return breakpadPayload{}, debugid.Nil, false
	}
	raw := fields[3]
	if len(raw) < 33 || len(raw) > 40 || strings.Contains(raw, "-") {
		return breakpadPayload{}, debugid.Nil, false
	}
	id, err := debugid.Parse(raw)
	if err != nil || id.IsOpaque() || id.IsNil() {
		return breakpadPayload{}, debugid.Nil, false
	}
	return breakpadPayload{os: fields[1], arch: fields[2], name: strings.TrimSpace(fields[4])}, id, true
}
