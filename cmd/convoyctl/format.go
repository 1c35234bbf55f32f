package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/scheduler"
)

func makeExample(examples ...string) string {
	var buf strings.Builder
	for _, ex := range examples {
		fmt.Fprintf(&buf, "  %s\n", ex)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func newTabwriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
}

func shortRunID(id convoy.RunID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

func writeResult(out io.Writer, result scheduler.Result) {
	w := newTabwriter(out)
	fmt.Fprintln(w, "STAGE\tJOB\tSTATUS\tERROR")
	for _, stage := range result.Stages {
		for _, job := range stage.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", stage.Name, job.Name, job.Status, job.Error)
		}
	}
	w.Flush()
	fmt.Fprintf(out, "\nrun %s: %s\n", result.ID, result.Status)
	if len(result.Approvals) > 0 {
		fmt.Fprintf(out, "waiting for approval: %s\n", strings.Join(result.Approvals, ", "))
	}
}
