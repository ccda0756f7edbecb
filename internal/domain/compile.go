package domain

import (
	"fmt"
	"strings"
)

// Exit codes of a compiled job script.
const (
	CompiledExitPassed  = 0
	CompiledExitFailed  = 1
	CompiledExitErrored = 2
)

// CompileScript renders a standalone bash script that runs job the way the
// job executor does: setup phases stop the script with exit 2, every script
// command runs and any failure exits 1, and after_* commands never change
// the exit code.
func CompileScript(bf *BuildFile, job Job, jc JobContext) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("#!/usr/bin/env bash")
	line("# Job %s: %s", job.Number, job.Label())
	if bf.Path != "" {
		line("# Compiled from %s", bf.Path)
	}
	line("")
	for _, v := range CIEnvironment(job, jc) {
		line("export %s=%s", v.Name, ShellQuote(v.Value))
	}
	line("")
	line("cimatrix_result=0")
	line("cimatrix_cmd() {")
	line(`  echo "\$ $1"`)
	line(`  eval "$1"`)
	line("  local code=$?")
	line(`  echo "The command \"$1\" exited with $code."`)
	line("  return $code")
	line("}")
	line("")
	if jc.BuildDir != "" {
		line("cd %s || exit %d", ShellQuote(jc.BuildDir), CompiledExitErrored)
	}

	if vars := job.DeclaredEnv(); len(vars) > 0 {
		line("")
		line("# env")
		for _, v := range vars {
			line("%s || exit %d", v.ExportCommand(), CompiledExitErrored)
		}
	}

	for _, p := range AllPhases() {
		cmds := bf.Commands(p)
		if p.IsAfter() || len(cmds) == 0 {
			// after_* phases are rendered below, once TRAVIS_TEST_RESULT is known
			continue
		}
		line("")
		line("# %s", p)
		for _, c := range cmds {
			if p.IsSetup() {
				line("cimatrix_cmd %s || exit %d", ShellQuote(c), CompiledExitErrored)
			} else {
				line("cimatrix_cmd %s || cimatrix_result=%d", ShellQuote(c), CompiledExitFailed)
			}
		}
	}

	line("")
	line("export TRAVIS_TEST_RESULT=$cimatrix_result")
	success, failure := bf.Commands(PhaseAfterSuccess), bf.Commands(PhaseAfterFailure)
	if len(success) > 0 || len(failure) > 0 {
		line(`if [ "$cimatrix_result" -eq 0 ]; then`)
		line("  :")
		for _, c := range success {
			line("  cimatrix_cmd %s", ShellQuote(c))
		}
		line("else")
		line("  :")
		for _, c := range failure {
			line("  cimatrix_cmd %s", ShellQuote(c))
		}
		line("fi")
	}
	for _, c := range bf.Commands(PhaseAfterScript) {
		line("cimatrix_cmd %s", ShellQuote(c))
	}
	line("exit $cimatrix_result")
	return b.String()
}
