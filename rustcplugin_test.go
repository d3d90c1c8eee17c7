package rustcplugin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"rustcplugin/compiler"
	"rustcplugin/driver"
	"rustcplugin/plugin"
)

const runLogEnv = "RUSTCPLUGIN_E2E_LOG"

// TestMain turns the test binary into the driver when cargo invokes it as
// the compiler wrapper.
func TestMain(m *testing.M) {
	if driver.IsWrapperInvocation(os.Args) {
		os.Exit(Run(context.Background(), recordingPlugin{}, os.Args, os.LookupEnv))
	}
	os.Exit(m.Run())
}

type recordingArgs struct {
	Tag string `json:"tag"`
}

// recordingPlugin appends one line per plugin run to the file named by
// runLogEnv, then compiles the unit normally.
type recordingPlugin struct {
	filter plugin.CrateFilter
}

func (recordingPlugin) Version() string { return "0.0.0-test" }

func (recordingPlugin) DriverName() string { return "" }

func (p recordingPlugin) Args(string) (plugin.Args[recordingArgs], error) {
	return plugin.Args[recordingArgs]{Args: recordingArgs{Tag: "e2e"}, Filter: p.filter}, nil
}

func (recordingPlugin) ModifyCargo(*exec.Cmd, recordingArgs) {}

func (recordingPlugin) Run(ctx context.Context, c *compiler.Compiler, args recordingArgs) error {
	f, err := os.OpenFile(os.Getenv(runLogEnv), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, primary := os.LookupEnv(plugin.PrimaryPackageEnv)
	fmt.Fprintf(f, "%s primary=%t tag=%s\n", c.Invocation().CrateName, primary, args.Tag)
	if err := f.Close(); err != nil {
		return err
	}
	return c.Run(ctx, compiler.NoopCallbacks{})
}

func extractWorkspace(t *testing.T, name string) string {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	for _, f := range ar.Files {
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func readRuns(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestCargoRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("cargo"); err != nil {
		t.Skip("cargo not installed")
	}

	tests := []struct {
		name   string
		filter plugin.CrateFilter
		// A selected library's artifacts are removed before each run, so
		// the plugin sees it again even when nothing changed.
		rerun bool
	}{
		{name: "All Crates", filter: plugin.AllCrates()},
		{name: "Only Workspace", filter: plugin.OnlyWorkspace()},
		{name: "Crate Containing File", filter: plugin.CrateContainingFile("src/lib.rs"), rerun: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := extractWorkspace(t, "basic.txtar")
			runLog := filepath.Join(t.TempDir(), "runs.log")
			t.Setenv(runLogEnv, runLog)
			chdir(t, dir)

			p := recordingPlugin{filter: tt.filter}
			if code := Run(context.Background(), p, []string{"cargo-basic"}, os.LookupEnv); code != 0 {
				t.Fatalf("Run() = %d, want 0", code)
			}

			want := []string{"basic primary=true tag=e2e"}
			if got := readRuns(t, runLog); !reflect.DeepEqual(got, want) {
				t.Errorf("plugin runs = %q, want %q", got, want)
			}

			if code := Run(context.Background(), p, []string{"cargo-basic"}, os.LookupEnv); code != 0 {
				t.Fatalf("second Run() = %d, want 0", code)
			}
			if tt.rerun {
				want = append(want, want[0])
			}
			if got := readRuns(t, runLog); !reflect.DeepEqual(got, want) {
				t.Errorf("plugin runs after rerun = %q, want %q", got, want)
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	// -V is answered without looking for a workspace.
	chdir(t, t.TempDir())
	if code := Run(context.Background(), recordingPlugin{}, []string{"cargo-basic", "-V"}, os.LookupEnv); code != 0 {
		t.Errorf("Run(-V) = %d, want 0", code)
	}
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
