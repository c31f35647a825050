package cmd

import (
	"errors"
	"fmt"
	"strings"
)

// splitCommandArgs splits argv at the command selector. head holds the flags
// up to and including -c/--command NAME and is parsed by cobra; tail is
// everything after NAME and is passed to the command untouched.
func splitCommandArgs(args []string) (head, tail []string) {
	for i, arg := range args {
		switch {
		case arg == "--":
			return args, nil
		case arg == "-c" || arg == "--command":
			if i+1 >= len(args) {
				return args, nil
			}
			return clone(args[:i+2]), clone(args[i+2:])
		case strings.HasPrefix(arg, "--command="),
			strings.HasPrefix(arg, "-c") && !strings.HasPrefix(arg, "--") && len(arg) > 2:
			return clone(args[:i+1]), clone(args[i+1:])
		}
	}
	return args, nil
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}

// exitError carries a process exit status through cobra. A non-empty message
// is printed to stdout as a diagnostic.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func usageError(format string, args ...any) error {
	return &exitError{code: 1, msg: fmt.Sprintf(format, args...)}
}

// exitCode maps the error returned by the root command to an exit status,
// printing the diagnostic
func exitCode(err error, printf func(format string, args ...any)) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			printf("Error: %s\n", ee.msg)
		}
		return ee.code
	}
	printf("Error: %v\n", err)
	return 1
}
