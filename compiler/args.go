package compiler

import (
	"path/filepath"
	"strings"
)

// ArgValue finds an option named flag in args, given either as
// "--flag=value" or as "--flag value", and returns the first value for which
// pred holds. A nil pred accepts any value.
func ArgValue(args []string, flag string, pred func(string) bool) (string, bool) {
	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(args[i], "=")
		if name != flag {
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				continue
			}
			i++
			value = args[i]
		}
		if pred == nil || pred(value) {
			return value, true
		}
	}
	return "", false
}

// ArgValues returns every value given for flag, in order.
func ArgValues(args []string, flag string) []string {
	var values []string
	ArgValue(args, flag, func(v string) bool {
		values = append(values, v)
		return false
	})
	return values
}

// HasFlag reports whether flag appears in args, with or without a value.
func HasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag || strings.HasPrefix(arg, flag+"=") {
			return true
		}
	}
	return false
}

// Invocation is what the compiler was asked to do, as far as it can be read
// off the argument vector.
type Invocation struct {
	CrateName  string
	CrateTypes []string
	Edition    string
	Input      string
	OutDir     string
	Sysroot    string
	Prints     []string
}

// IsPrintQuery reports whether this is one of cargo's --print capability queries.
func (inv *Invocation) IsPrintQuery() bool {
	return len(inv.Prints) > 0
}

// HasCrateType reports whether kind is one of the requested crate types.
func (inv *Invocation) HasCrateType(kind string) bool {
	for _, t := range inv.CrateTypes {
		if t == kind {
			return true
		}
	}
	return false
}

// Flags that consume the following argument when given without "=". Used to
// tell the input file apart from option values.
var valueFlags = map[string]bool{
	"--crate-name": true, "--crate-type": true, "--edition": true,
	"--out-dir": true, "--sysroot": true, "--print": true, "--emit": true,
	"--cfg": true, "--check-cfg": true, "--extern": true, "--target": true,
	"--cap-lints": true, "--error-format": true, "--json": true,
	"--explain": true, "--remap-path-prefix": true, "-o": true,
	"-L": true, "-l": true, "-C": true, "-Z": true, "-A": true, "-W": true,
	"-D": true, "-F": true, "--codegen": true, "--diagnostic-width": true,
	"--color": true, "--crate-attr": true,
}

func ParseInvocation(args []string) Invocation {
	inv := Invocation{}
	inv.CrateName, _ = ArgValue(args, "--crate-name", nil)
	for _, v := range ArgValues(args, "--crate-type") {
		inv.CrateTypes = append(inv.CrateTypes, strings.Split(v, ",")...)
	}
	inv.Edition, _ = ArgValue(args, "--edition", nil)
	inv.OutDir, _ = ArgValue(args, "--out-dir", nil)
	inv.Sysroot, _ = ArgValue(args, "--sysroot", nil)
	inv.Prints = ArgValues(args, "--print")

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if valueFlags[arg] {
			i++
			continue
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if filepath.Ext(arg) == ".rs" {
			inv.Input = arg
		}
	}
	return inv
}
