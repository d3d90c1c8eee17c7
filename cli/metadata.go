package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Metadata is the subset of `cargo metadata` output the coordinator uses.
type Metadata struct {
	Packages         []Package `json:"packages"`
	WorkspaceMembers []string  `json:"workspace_members"`
	TargetDirectory  string    `json:"target_directory"`
	WorkspaceRoot    string    `json:"workspace_root"`
}

type Package struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Targets []Target `json:"targets"`
}

// Target is one buildable unit of a package.
type Target struct {
	Name       string   `json:"name"`
	Kind       []string `json:"kind"`
	CrateTypes []string `json:"crate_types"`
	SrcPath    string   `json:"src_path"`
}

// HasKind reports whether kind is one of the target's kinds.
func (t *Target) HasKind(kind string) bool {
	for _, k := range t.Kind {
		if k == kind {
			return true
		}
	}
	return false
}

// PrimaryKind is the kind used to select the target on cargo's command line.
func (t *Target) PrimaryKind() string {
	if len(t.Kind) == 0 {
		return ""
	}
	return t.Kind[0]
}

// Members returns the workspace member packages in workspace order.
func (m *Metadata) Members() ([]Package, error) {
	byID := make(map[string]*Package, len(m.Packages))
	for i := range m.Packages {
		byID[m.Packages[i].ID] = &m.Packages[i]
	}

	members := make([]Package, 0, len(m.WorkspaceMembers))
	for _, id := range m.WorkspaceMembers {
		pkg, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("workspace member %s missing from package list", id)
		}
		members = append(members, *pkg)
	}
	return members, nil
}

// DecodeMetadata reads `cargo metadata --format-version 1` output.
func DecodeMetadata(r io.Reader) (*Metadata, error) {
	var m Metadata
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding cargo metadata: %w", err)
	}
	if m.TargetDirectory == "" {
		return nil, errors.New("decoding cargo metadata: no target_directory")
	}
	return &m, nil
}

// ResolveWorkspace asks cargo for the workspace topology of dir without
// building anything.
func ResolveWorkspace(ctx context.Context, cargo, dir string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, cargo, "metadata", "--no-deps", "--format-version", "1", "--all-features", "--offline")
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("cargo metadata: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("cargo metadata: %w", err)
	}
	return DecodeMetadata(bytes.NewReader(out))
}
