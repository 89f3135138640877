package sandbox

import (
	"strings"
	"testing"
	"time"
)

func TestHarnessFiles(t *testing.T) {
	cfg := Config{Timeout: 3 * time.Second, MemoryMB: 64}
	files := harnessFiles("print('hi')", cfg)

	if files[codeFileName] != "print('hi')" {
		t.Errorf("code file = %q", files[codeFileName])
	}

	harness := files[harnessFileName]
	if !strings.Contains(harness, "RLIMIT_CPU") {
		t.Error("harness missing CPU rlimit")
	}
	if !strings.Contains(harness, "RLIMIT_AS") {
		t.Error("harness missing address-space rlimit")
	}
	// 64 MB in bytes must appear in the rlimit call
	if !strings.Contains(harness, "67108864") {
		t.Error("harness missing memory limit value")
	}
	if !strings.Contains(harness, `"main.py"`) {
		t.Error("harness does not reference the code file")
	}
	if !strings.Contains(harness, `"result.json"`) {
		t.Error("harness does not reference the result file")
	}
}

func TestParseHarnessResult(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantErr   bool
		wantError string
		wantKeys  []string
	}{
		{
			name:     "bindings and no error",
			data:     `{"bindings":{"x":1,"items":[1,2,3]},"error":""}`,
			wantKeys: []string{"x", "items"},
		},
		{
			name:      "error populated",
			data:      `{"bindings":{},"error":"ZeroDivisionError: division by zero"}`,
			wantError: "ZeroDivisionError: division by zero",
		},
		{
			name:    "malformed json",
			data:    `{"bindings":`,
			wantErr: true,
		},
		{
			name: "null bindings normalized",
			data: `{"bindings":null,"error":""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := parseHarnessResult([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseHarnessResult: %v", err)
			}
			if out.Bindings == nil {
				t.Fatal("bindings must never be nil")
			}
			if out.Error != tt.wantError {
				t.Errorf("error = %q, want %q", out.Error, tt.wantError)
			}
			for _, k := range tt.wantKeys {
				if _, ok := out.Bindings[k]; !ok {
					t.Errorf("missing binding %q", k)
				}
			}
		})
	}
}

func TestDemuxOutput(t *testing.T) {
	// stdout frame "out" followed by stderr frame "err"
	frame := func(streamType byte, s string) []byte {
		b := []byte{streamType, 0, 0, 0, 0, 0, 0, byte(len(s))}
		return append(b, s...)
	}

	data := append(frame(1, "out"), frame(2, "err")...)
	stdout, stderr := demuxOutput(data)
	if stdout != "out" || stderr != "err" {
		t.Errorf("demuxOutput = (%q, %q), want (out, err)", stdout, stderr)
	}

	// Raw output without headers is treated as stdout
	stdout, stderr = demuxOutput([]byte("raw"))
	if stdout != "raw" || stderr != "" {
		t.Errorf("demuxOutput raw = (%q, %q)", stdout, stderr)
	}
}
