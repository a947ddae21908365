package cli

import (
	"context"
	"fmt"
	"io"
)

// Execute runs the command line with the given IO and returns the process
// exit code.
func Execute(ctx context.Context, args []string, in io.Reader, out io.Writer, errOut io.Writer) int {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	root := NewRootCmd()
	root.SetArgs(args)
	if in != nil {
		root.SetIn(in)
	}
	root.SetOut(out)
	root.SetErr(errOut)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
	return 0
}
