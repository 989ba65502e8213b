package main

import (
	"fmt"

	"github.com/agilira/orpheus/pkg/orpheus"

	"devctl/internal/invoke"
)

// Exception Numbers
const (
	TARGET_NOT_FOUND int8 = iota + 1
	FILE_NOT_FOUND
	TARGET_ERROR
	INVALID_LEVEL
	NOT_GIT_ROOT
	INVALID_JOB
)

var Exps map[int8]string

// Initialize Exceptions Map
func InitExceptions() {
	Exps = make(map[int8]string, 0)
	Exps[TARGET_NOT_FOUND] = "Target %s Not Found"
	Exps[FILE_NOT_FOUND] = "Config %s Not Found"
	Exps[TARGET_ERROR] = "TargetError: %s"
	Exps[INVALID_LEVEL] = "Release level %s is not one of alpha, beta, rc, major, minor, patch"
	Exps[NOT_GIT_ROOT] = "'%s' must be the git repository root"
	Exps[INVALID_JOB] = "Invalid job: %s"
}

// RaiseException returns the orpheus error for an exception number.
func RaiseException(command string, exception_number int8, value string) error {
	if Exps == nil {
		InitExceptions()
	}
	msg := fmt.Sprintf(Exps[exception_number], value)
	switch exception_number {
	case TARGET_NOT_FOUND, FILE_NOT_FOUND:
		return orpheus.NotFoundError(command, msg)
	case TARGET_ERROR:
		return orpheus.ExecutionError(command, msg)
	default:
		return orpheus.ValidationError(command, msg)
	}
}

func SkipError(local bool) bool {
	return local || cfg.ContinueOnError
}

// exitStatus is the process exit code. The first failing child decides it.
var exitStatus int

func recordExit(err error) {
	if err != nil && exitStatus == 0 {
		exitStatus = invoke.ExitCode(err)
	}
}
