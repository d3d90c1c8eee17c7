package cli

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"rustcplugin/plugin"
)

func TestSelectTargetsBroad(t *testing.T) {
	tests := []struct {
		name        string
		filter      plugin.CrateFilter
		wantMarkers map[string]string
	}{
		{
			name:        "All Crates",
			filter:      plugin.AllCrates(),
			wantMarkers: map[string]string{"RUSTC_PLUGIN_ALL_TARGETS": ""},
		},
		{
			name:        "Only Workspace",
			filter:      plugin.OnlyWorkspace(),
			wantMarkers: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := SelectTargets(tt.filter, nil)
			if err != nil {
				t.Fatalf("SelectTargets() error = %v", err)
			}
			if !reflect.DeepEqual(sel.CargoArgs, []string{"--all"}) {
				t.Errorf("CargoArgs = %v", sel.CargoArgs)
			}
			if !reflect.DeepEqual(sel.Markers, tt.wantMarkers) {
				t.Errorf("Markers = %v, want %v", sel.Markers, tt.wantMarkers)
			}
			if sel.Target != nil || sel.Kind() != "" {
				t.Errorf("broad selection picked target %+v", sel.Target)
			}
		})
	}
}

func TestSelectTargetsForFile(t *testing.T) {
	dir := extractWorkspace(t, "workspace.txtar")
	members := loadMembers(t, dir)

	tests := []struct {
		name        string
		file        string
		wantArgs    []string
		wantCrate   string
		wantTarget  string
		wantPackage string
	}{
		{
			name:       "Library Root",
			file:       "my-crate/src/lib.rs",
			wantArgs:   []string{"-p", "my-crate:0.1.0", "--lib"},
			wantCrate:  "my_crate",
			wantTarget: "lib",
		},
		{
			name:       "Module Of A Lib And Bin Package Goes To Lib",
			file:       "my-crate/src/util.rs",
			wantArgs:   []string{"-p", "my-crate:0.1.0", "--lib"},
			wantCrate:  "my_crate",
			wantTarget: "lib",
		},
		{
			name:       "Main Goes To Bin",
			file:       "my-crate/src/main.rs",
			wantArgs:   []string{"-p", "my-crate:0.1.0", "--bin", "my-crate"},
			wantCrate:  "my_crate",
			wantTarget: "bin",
		},
		{
			name:       "Stem Names The Example",
			file:       "my-crate/examples/demo.rs",
			wantArgs:   []string{"-p", "my-crate:0.1.0", "--example", "demo"},
			wantCrate:  "my_crate",
			wantTarget: "example",
		},
		{
			name:       "Stem Names The Binary",
			file:       "tool/src/bin/helper.rs",
			wantArgs:   []string{"-p", "tool:0.2.0", "--bin", "helper"},
			wantCrate:  "tool",
			wantTarget: "bin",
		},
		{
			name:       "Binary Only Package Falls Back To First Bin",
			file:       "tool/src/bin/shared.rs",
			wantArgs:   []string{"-p", "tool:0.2.0", "--bin", "tool"},
			wantCrate:  "tool",
			wantTarget: "bin",
		},
		{
			name:       "Proc Macro Has No Kind Flag",
			file:       "derive/src/lib.rs",
			wantArgs:   []string{"-p", "derive:0.1.0"},
			wantCrate:  "derive",
			wantTarget: "proc-macro",
		},
		{
			name:       "Outer Library Only",
			file:       "outer/src/lib.rs",
			wantArgs:   []string{"-p", "outer:0.1.0", "--lib"},
			wantCrate:  "outer",
			wantTarget: "lib",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(dir, filepath.FromSlash(tt.file))
			sel, err := SelectTargets(plugin.CrateContainingFile(file), members)
			if err != nil {
				t.Fatalf("SelectTargets() error = %v", err)
			}
			if !reflect.DeepEqual(sel.CargoArgs, tt.wantArgs) {
				t.Errorf("CargoArgs = %v, want %v", sel.CargoArgs, tt.wantArgs)
			}
			wantMarkers := map[string]string{"SPECIFIC_CRATE": tt.wantCrate, "SPECIFIC_TARGET": tt.wantTarget}
			if !reflect.DeepEqual(sel.Markers, wantMarkers) {
				t.Errorf("Markers = %v, want %v", sel.Markers, wantMarkers)
			}
		})
	}
}

func TestSelectTargetsErrors(t *testing.T) {
	dir := extractWorkspace(t, "workspace.txtar")
	members := loadMembers(t, dir)

	tests := []struct {
		name           string
		file           string
		wantCandidates []string
	}{
		{
			name: "No Target Contains The File",
			file: "metadata.json",
		},
		{
			name:           "Overlapping Packages Are Ambiguous",
			file:           "outer/src/inner/lib.rs",
			wantCandidates: []string{"inner:inner", "outer:outer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(dir, filepath.FromSlash(tt.file))
			_, err := SelectTargets(plugin.CrateContainingFile(file), members)

			var targetErr *TargetError
			if !errors.As(err, &targetErr) {
				t.Fatalf("SelectTargets() error = %v, want *TargetError", err)
			}
			if targetErr.Path != file {
				t.Errorf("TargetError.Path = %s, want %s", targetErr.Path, file)
			}
			got := append([]string(nil), targetErr.Candidates...)
			sort.Strings(got)
			if !reflect.DeepEqual(got, tt.wantCandidates) {
				t.Errorf("Candidates = %v, want %v", got, tt.wantCandidates)
			}
		})
	}
}

func TestInvalidateLibArtifacts(t *testing.T) {
	targetDir := t.TempDir()
	deps := filepath.Join(targetDir, "debug", "deps")
	if err := os.MkdirAll(deps, 0o755); err != nil {
		t.Fatal(err)
	}
	files := []string{
		"libmy_crate-0123abcd.rmeta",
		"libmy_crate-0123abcd.rlib",
		"libother-99.rlib",
		"my_crate-0123abcd.d",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(deps, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := InvalidateLibArtifacts(targetDir, "my_crate"); err != nil {
		t.Fatalf("InvalidateLibArtifacts() error = %v", err)
	}

	entries, err := os.ReadDir(deps)
	if err != nil {
		t.Fatal(err)
	}
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	want := []string{"libother-99.rlib", "my_crate-0123abcd.d"}
	if !reflect.DeepEqual(left, want) {
		t.Errorf("remaining artifacts = %v, want %v", left, want)
	}

	if err := InvalidateLibArtifacts(filepath.Join(targetDir, "fresh"), "my_crate"); err != nil {
		t.Errorf("InvalidateLibArtifacts() on a fresh target dir: %v", err)
	}
}
