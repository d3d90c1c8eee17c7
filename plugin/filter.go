package plugin

import "fmt"

type FilterKind int

const (
	// FilterAllCrates runs on every crate in the dependency graph.
	FilterAllCrates FilterKind = iota
	// FilterOnlyWorkspace runs on the workspace's own crates only.
	FilterOnlyWorkspace
	// FilterCrateContainingFile runs on the one crate whose sources contain
	// a given file.
	FilterCrateContainingFile
)

func (k FilterKind) String() string {
	switch k {
	case FilterAllCrates:
		return "AllCrates"
	case FilterOnlyWorkspace:
		return "OnlyWorkspace"
	case FilterCrateContainingFile:
		return "CrateContainingFile"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

// CrateFilter says which compilation units a plugin wants to run on. The
// zero value is AllCrates.
type CrateFilter struct {
	kind FilterKind
	file string
}

func AllCrates() CrateFilter {
	return CrateFilter{kind: FilterAllCrates}
}

func OnlyWorkspace() CrateFilter {
	return CrateFilter{kind: FilterOnlyWorkspace}
}

func CrateContainingFile(path string) CrateFilter {
	return CrateFilter{kind: FilterCrateContainingFile, file: path}
}

func (f CrateFilter) Kind() FilterKind {
	return f.kind
}

// File is the path given to CrateContainingFile, "" for other kinds.
func (f CrateFilter) File() string {
	return f.file
}

func (f CrateFilter) String() string {
	if f.kind == FilterCrateContainingFile {
		return fmt.Sprintf("%s(%s)", f.kind, f.file)
	}
	return f.kind.String()
}
