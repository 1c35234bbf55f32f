package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type historyOpts struct {
	*rootOpts
	run string
}

func newHistory(parent *rootOpts) *historyOpts {
	return &historyOpts{rootOpts: parent}
}

func (opts *historyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "show past run events, newest first",
		Example: makeExample(
			"convoyctl history",
			"convoyctl history --run=2f1a...",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVar(&opts.run, "run", "", "show events for a single run; if empty, all runs")
	return cmd
}

func (opts *historyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	events, err := opts.API.History(context.Background())
	if err != nil {
		return err
	}

	out := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintln(out, "TIME\tRUN\tTYPE\tMESSAGE")
	for _, e := range events {
		if opts.run != "" && string(e.RunID) != opts.run {
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", e.Stamp.Format(time.RFC822), shortRunID(e.RunID), e.Type, e.Message)
	}
	out.Flush()
	return nil
}
