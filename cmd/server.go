package cmd

import (
	"github.com/spf13/cobra"

	"vod-automation/config"
	server2 "vod-automation/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start the automation service",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
