package model

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// exporterEntryPoint is the console script installed with optimum. Its
// shebang names the interpreter that has the exporter importable.
const exporterEntryPoint = "optimum-cli"

func detectExportPython() string {
	return interpreterFromShebang(exporterEntryPoint, "python3")
}

// interpreterFromShebang resolves script on PATH and returns the interpreter
// of its #! line, or fallback when the script or interpreter is missing.
func interpreterFromShebang(script, fallback string) string {
	path, err := exec.LookPath(script)
	if err != nil {
		return fallback
	}

	fh, err := os.Open(path)
	if err != nil {
		return fallback
	}
	defer fh.Close()

	s := bufio.NewScanner(fh)
	if !s.Scan() {
		return fallback
	}

	line := strings.TrimSpace(s.Text())
	if !strings.HasPrefix(line, "#!") {
		return fallback
	}

	fields := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(fields) == 0 {
		return fallback
	}

	interpreter := fields[0]
	if filepath.Base(interpreter) == "env" && len(fields) > 1 {
		return fields[1]
	}
	if _, err := os.Stat(interpreter); err != nil {
		return fallback
	}

	return interpreter
}
