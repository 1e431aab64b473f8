package dif

import (
	"errors"

	"difutil/internal/debugid"
	"difutil/internal/objfile"
)

// extractELF reads the GNU build id of an ELF object. An object without one
// can never be matched to a build, so its absence makes the file unusable.
func extractELF(path string) (result, error) {
	ef, err := objfile.OpenELF(path)
	if err != nil {
		if isIOError(err) {
			return result{}, err
		}
		return result{problem: "corrupt object file"}, nil
	}
	defer ef.Close()

	r := result{
		features: Features{
			HasDebugInfo:  ef.HasSection(".debug_info", ".zdebug_info"),
			HasSymbols:    ef.HasSymbols(),
			HasUnwindInfo: ef.HasSection(".eh_frame", ".debug_frame", ".zdebug_frame"),
		},
	}

	buildID, err := ef.BuildID()
	if errors.Is(err, objfile.ErrNoBuildID) {
		r.problem = "missing identifier section"
		return r, nil
	}
	if err != nil {
		return result{}, err
	}

	id := debugid.FromGUIDBytes(buildID)
	if id.IsNil() {
		r.problem = "empty build id"
		return r, nil
	}
	r.payload = elfPayload{buildID: append([]byte(nil), buildID...)}
	r.addID(id, ef.Arch())
	return r, nil
}
