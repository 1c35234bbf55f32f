package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/api"
)

type runOpts struct {
	*rootOpts
	revision string
	tag      bool
	actor    string
}

func newRun(parent *rootOpts) *runOpts {
	return &runOpts{rootOpts: parent}
}

func (opts *runOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <ref>",
		Short: "trigger a pipeline run for a ref and revision",
		Example: makeExample(
			"convoyctl run main --revision=4f2d9c1a",
			"convoyctl run v1.4.0 --tag --revision=4f2d9c1a",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.revision, "revision", "r", "", "revision to run the pipeline for")
	cmd.Flags().BoolVar(&opts.tag, "tag", false, "treat <ref> as a tag rather than a branch")
	cmd.Flags().StringVar(&opts.actor, "actor", "", "who triggered the run; recorded in history")
	return cmd
}

func (opts *runOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("expected a single <ref> argument")
	}
	if opts.revision == "" {
		return newUsageError("please supply --revision")
	}

	kind := convoy.RefKindBranch
	if opts.tag {
		kind = convoy.RefKindTag
	}
	spec := api.RunSpec{
		Revision: opts.revision,
		Ref:      args[0],
		RefKind:  kind,
		Actor:    opts.actor,
	}

	result, err := opts.API.Run(context.Background(), spec)
	if err != nil {
		return err
	}

	writeResult(cmd.OutOrStdout(), result)

	if result.Status == convoy.RunFailed {
		return runFailedError{fmt.Errorf("run %s failed", result.ID)}
	}
	return nil
}
