package cmd

import (
	"VoxNote/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动VoxNote服务器",
	Long:  `连接MySQL、Redis与MinIO，自动迁移表结构后启动HTTP API服务。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
