package cmd

import (
	"github.com/spf13/cobra"

	"BeatFlow/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动BeatFlow服务器",
	Long:  `启动BeatFlow市场的HTTP服务器，提供API服务与实时播放/工作台桥接`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
