package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type approveOpts struct {
	*rootOpts
}

func newApprove(parent *rootOpts) *approveOpts {
	return &approveOpts{rootOpts: parent}
}

func (opts *approveOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <job>",
		Short: "approve a manual job in the active run",
		Example: makeExample(
			"convoyctl approve deploy-production",
		),
		RunE: opts.RunE,
	}
}

func (opts *approveOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("expected a single <job> argument")
	}
	if err := opts.API.Approve(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "approved %s\n", args[0])
	return nil
}
