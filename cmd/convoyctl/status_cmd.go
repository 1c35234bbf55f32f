package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type statusOpts struct {
	*rootOpts
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show the active run, or the last one if idle",
		RunE:  opts.RunE,
	}
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	status, err := opts.API.Status(context.Background())
	if err != nil {
		return err
	}
	if status.Run == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs yet")
		return nil
	}
	if !status.Active {
		fmt.Fprintln(cmd.OutOrStdout(), "idle; last run:")
	}
	writeResult(cmd.OutOrStdout(), *status.Run)
	return nil
}
