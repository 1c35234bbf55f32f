package main

import (
	"net/http"
	"os"

	convoyhttp "github.com/convoycd/convoy/http"
)

func main() {
	rootCmd := newRoot().Command()

	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return
	}
	switch err := err.(type) {
	case usageError:
		cmd.Println("")
		cmd.Println(cmd.UsageString())
		os.Exit(2)
	case runFailedError:
		os.Exit(1)
	case *convoyhttp.RemoteError:
		if err.Code == http.StatusBadRequest {
			os.Exit(2)
		}
		os.Exit(1)
	}
	os.Exit(1)
}
