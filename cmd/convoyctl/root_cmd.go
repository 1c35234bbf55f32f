package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/convoycd/convoy/api"
	convoyhttp "github.com/convoycd/convoy/http"
)

const (
	EnvVariableURL = "CONVOY_URL"
)

type rootOpts struct {
	URL string
	API api.Service
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
convoyctl triggers and inspects pipeline runs on a convoyd daemon.

Workflow:
  convoyctl run main --revision=4f2d9c1a       # Run the pipeline for a commit.
  convoyctl status                             # Which jobs ran, which are waiting?
  convoyctl approve deploy-production          # Unblock a manual job.
  convoyctl history                            # What happened before?
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "convoyctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", "http://localhost:3040",
		fmt.Sprintf("base URL of the convoyd API server; you can also set the environment variable %s", EnvVariableURL))

	cmd.AddCommand(
		newRun(opts).Command(),
		newApprove(opts).Command(),
		newStatus(opts).Command(),
		newHistory(opts).Command(),
		newVersionCommand(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	url := os.Getenv(EnvVariableURL)
	if cmd.Flags().Changed("url") || url == "" {
		url = opts.URL
	}
	url = strings.TrimSuffix(url, "/")

	opts.API = convoyhttp.NewClient(http.DefaultClient, url)
	return nil
}
