package main

import (
	"errors"
	"os"
)

// errChecksFailed makes validate exit non-zero without printing a usage message
var errChecksFailed = errors.New("integrity checks failed")

func main() {
	os.Exit(run(newApp(os.Stdin, os.Stdout), os.Args[1:]))
}

// run executes one command line and returns the process exit code
func run(a *app, args []string) int {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.Execute()
	a.close()

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errChecksFailed):
		return 2
	default:
		return 1
	}
}
