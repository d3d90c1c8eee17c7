package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Level
		wantErr bool
	}{
		{name: "Debug", input: "debug", want: Debug},
		{name: "Rust Trace", input: "TRACE", want: Debug},
		{name: "Empty", input: "", want: Info},
		{name: "Warning", input: "warning", want: Warn},
		{name: "Error", input: " error ", want: Error},
		{name: "Unknown", input: "loud", want: Info, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "text")
	SetLevel(Warn)
	t.Cleanup(func() {
		Configure(nil, "text")
		SetLevel(Info)
	})

	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("warn message missing: %q", out)
	}
	if IsVerbose() {
		t.Error("IsVerbose() at warn level")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "json")
	SetLevel(Debug)
	t.Cleanup(func() {
		Configure(nil, "text")
		SetLevel(Info)
	})

	With("crate", "basic").Debug("decided")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if record["msg"] != "decided" || record["crate"] != "basic" {
		t.Errorf("record = %v", record)
	}
}
