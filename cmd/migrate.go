package cmd

import (
	"fmt"

	"VoxNote/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "同步数据库表结构",
	Long:  `对 users、folders、notes 三张表执行 GORM AutoMigrate。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("数据库: %s@%s:%s/%s\n", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err := db.ConnectGormDB(cfg); err != nil {
			return err
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrate(db.GormDB); err != nil {
			return fmt.Errorf("迁移失败: %w", err)
		}
		fmt.Println("表结构已是最新。")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
