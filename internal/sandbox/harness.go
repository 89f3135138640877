package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	harnessFileName = "harness.py"
	codeFileName    = "main.py"
	resultFileName  = "result.json"
)

// harnessSource is the Python shim that runs the learner code. It applies
// CPU and address-space rlimits, executes the code with an empty globals
// table, lets prints reach the real stdout, and writes the surviving
// top-level bindings plus any exception text to result.json. The %d verbs
// are the CPU-seconds and memory-byte limits.
const harnessSource = `import json, resource, traceback

resource.setrlimit(resource.RLIMIT_CPU, (%d, %d))
try:
    resource.setrlimit(resource.RLIMIT_AS, (%d, %d))
except (ValueError, OSError):
    pass

g = {"__name__": "__main__"}
err = ""
try:
    with open(%q, "r", encoding="utf-8") as f:
        src = f.read()
    exec(compile(src, %q, "exec"), g)
except BaseException as e:
    err = "".join(traceback.format_exception(type(e), e, e.__traceback__))

bindings = {}
for k, v in g.items():
    if k.startswith("__") or callable(v) or type(v).__name__ == "module":
        continue
    try:
        json.dumps(v)
        bindings[k] = v
    except (TypeError, ValueError):
        bindings[k] = repr(v)

with open(%q, "w", encoding="utf-8") as f:
    json.dump({"bindings": bindings, "error": err}, f)
`

// harnessFiles returns the files a backend must place in the sandbox
// working directory before invoking python3 on the harness.
func harnessFiles(code string, cfg Config) map[string]string {
	cpuSeconds := int(cfg.Timeout.Seconds()) + 1
	memBytes := cfg.MemoryMB * 1024 * 1024
	harness := fmt.Sprintf(harnessSource,
		cpuSeconds, cpuSeconds, memBytes, memBytes,
		codeFileName, codeFileName, resultFileName)
	return map[string]string{
		harnessFileName: harness,
		codeFileName:    code,
	}
}

// harnessResult mirrors the JSON document the harness writes.
type harnessResult struct {
	Bindings map[string]any `json:"bindings"`
	Error    string         `json:"error"`
}

func readHarnessResult(path string) (*harnessResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseHarnessResult(data)
}

func parseHarnessResult(data []byte) (*harnessResult, error) {
	var out harnessResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode harness result: %w", err)
	}
	if out.Bindings == nil {
		out.Bindings = map[string]any{}
	}
	return &out, nil
}
