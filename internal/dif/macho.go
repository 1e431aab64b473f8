package dif

import (
	"os"

	"difutil/internal/debugid"
	"difutil/internal/objfile"
)

// extractMachO reads a dSYM bundle or a single Mach-O file. Every slice with
// an LC_UUID contributes one identifier.
func extractMachO(path string) (result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return result{}, err
	}

	objects := []string{path}
	if info.IsDir() {
		objects, err = bundleObjects(path)
		if err != nil {
			if isIOError(err) {
				return result{}, err
			}
			return result{problem: "no debug data found"}, nil
		}
	}

	var r result
	for _, obj := range objects {
		slices, err := objfile.OpenMachO(obj)
		if err != nil {
			if isIOError(err) {
				return result{}, err
			}
			continue
		}
		for _, s := range slices {
			r.features.merge(Features{
				HasDebugInfo:     s.HasDebugInfo,
				HasSymbols:       s.HasSymbols,
				HasUnwindInfo:    s.HasUnwindInfo,
				HasHiddenSymbols: s.HasHidden,
			})
			if s.UUID == nil {
				continue
			}
			id, err := debugid.FromBytes(s.UUID)
			if err != nil || id.IsNil() {
				continue
			}
			r.addID(id, s.Arch)
		}
	}
	r.payload = bundlePayload{}
	if len(r.ids) == 0 {
		r.problem = "no debug data found"
	}
	return r, nil
}
