package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rustcplugin/plugin"
	"rustcplugin/utils/logger"
)

// TargetError reports that a file could not be mapped to exactly one
// workspace target.
type TargetError struct {
	Path       string
	Candidates []string
}

func (e *TargetError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("could not find target for path: %s", e.Path)
	}
	return fmt.Sprintf("too many matching targets for path %s: %s", e.Path, strings.Join(e.Candidates, ", "))
}

// Selection is what the coordinator passes to cargo to build the crates a
// filter selects.
type Selection struct {
	// CargoArgs are appended to `cargo check`.
	CargoArgs []string
	// Markers are environment variables for the gate.
	Markers map[string]string

	// Package and Target are set for a single-target selection.
	Package *Package
	Target  *Target
}

// Kind is the selected target's kind, or "" for a broad selection.
func (s *Selection) Kind() string {
	if s.Target == nil {
		return ""
	}
	return s.Target.PrimaryKind()
}

// CrateName is the selected package's name as the compiler spells it.
func (s *Selection) CrateName() string {
	if s.Package == nil {
		return ""
	}
	return strings.ReplaceAll(s.Package.Name, "-", "_")
}

// SelectTargets turns a crate filter into cargo arguments and gate markers.
func SelectTargets(filter plugin.CrateFilter, members []Package) (*Selection, error) {
	switch filter.Kind() {
	case plugin.FilterAllCrates:
		return &Selection{
			CargoArgs: []string{"--all"},
			Markers:   map[string]string{plugin.RunOnAllCratesEnv: ""},
		}, nil
	case plugin.FilterOnlyWorkspace:
		return &Selection{
			CargoArgs: []string{"--all"},
			Markers:   map[string]string{},
		}, nil
	case plugin.FilterCrateContainingFile:
		pkg, target, err := findTarget(filter.File(), members)
		if err != nil {
			return nil, err
		}
		return singleTarget(pkg, target), nil
	default:
		return nil, fmt.Errorf("unknown crate filter %s", filter)
	}
}

type match struct {
	pkg    *Package
	target *Target
}

func findTarget(file string, members []Package) (*Package, *Target, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	var matches []match
	for i := range members {
		pkg := &members[i]
		var candidates []*Target
		for j := range pkg.Targets {
			target := &pkg.Targets[j]
			src, err := filepath.EvalSymlinks(target.SrcPath)
			if err != nil {
				return nil, nil, fmt.Errorf("resolving source of target %s: %w", target.Name, err)
			}
			if isWithin(abs, filepath.Dir(src)) {
				candidates = append(candidates, target)
			}
		}
		if target := disambiguate(abs, candidates); target != nil {
			matches = append(matches, match{pkg: pkg, target: target})
		}
	}

	switch len(matches) {
	case 0:
		return nil, nil, &TargetError{Path: file}
	case 1:
		return matches[0].pkg, matches[0].target, nil
	default:
		err := &TargetError{Path: file}
		for _, m := range matches {
			err.Candidates = append(err.Candidates, fmt.Sprintf("%s:%s", m.pkg.Name, m.target.Name))
		}
		return nil, nil, err
	}
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// disambiguate picks one of the targets whose source root contains file.
// There is no reliable way to tell which target a file belongs to from its
// name alone (src/foo.rs may be a module of main.rs, of lib.rs, or of both),
// so this is a fixed order of guesses.
func disambiguate(file string, candidates []*Target) *Target {
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	}

	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	for _, t := range candidates {
		if t.Name == stem {
			return t
		}
	}

	onlyBin := true
	for _, t := range candidates {
		if t.HasKind("lib") {
			onlyBin = false
			break
		}
	}

	kind := "lib"
	if onlyBin || stem == "main" {
		kind = "bin"
	}
	for _, t := range candidates {
		if t.HasKind(kind) {
			return t
		}
	}
	return nil
}

func singleTarget(pkg *Package, target *Target) *Selection {
	s := &Selection{
		CargoArgs: []string{"-p", fmt.Sprintf("%s:%s", pkg.Name, pkg.Version)},
		Package:   pkg,
		Target:    target,
	}

	kind := target.PrimaryKind()
	switch kind {
	case "proc-macro":
	case "lib":
		s.CargoArgs = append(s.CargoArgs, "--lib")
	default:
		s.CargoArgs = append(s.CargoArgs, "--"+kind, target.Name)
	}

	s.Markers = map[string]string{
		plugin.SpecificCrateEnv:  s.CrateName(),
		plugin.SpecificTargetEnv: kind,
	}
	logger.Debugf("cli: package %s, target kind %s, target name %s", pkg.Name, kind, target.Name)
	return s
}

// InvalidateLibArtifacts deletes the compiled outputs of a library crate so
// that cargo does not consider the crate fresh and skip the plugin. No other
// process may be using the target directory while this runs.
func InvalidateLibArtifacts(targetDir, crateName string) error {
	depsDir := filepath.Join(targetDir, "debug", "deps")
	entries, err := os.ReadDir(depsDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", depsDir, err)
	}

	prefix := "lib" + crateName
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		path := filepath.Join(depsDir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing stale artifact: %w", err)
		}
		logger.Debugf("cli: removed stale artifact %s", path)
	}
	return nil
}
