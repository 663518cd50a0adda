package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"VoxNote/storage"

	"github.com/spf13/cobra"
)

var (
	recordingsPrefix string
	recordingsUsage  bool
	recordingsDelete bool
)

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "录音存储桶管理",
	Long:  `查看和管理MinIO存储桶中的录音文件，支持按前缀列出、按目录统计占用、删除目录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewMinioClient(storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return fmt.Errorf("创建MinIO客户端失败: %w", err)
		}
		browser := storage.NewRecordingBrowser(client, cfg.MinioBucket)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		switch {
		case recordingsDelete:
			if recordingsPrefix == "" {
				return fmt.Errorf("删除操作需要指定目录前缀")
			}
			n, err := browser.DeletePrefix(ctx, recordingsPrefix)
			if err != nil {
				return fmt.Errorf("删除目录失败: %w", err)
			}
			fmt.Printf("已删除 %d 个对象 (前缀: %s)\n", n, recordingsPrefix)

		case recordingsUsage:
			usage, err := browser.UsageByFolder(ctx, recordingsPrefix)
			if err != nil {
				return fmt.Errorf("统计目录占用失败: %w", err)
			}
			dirs := make([]string, 0, len(usage))
			for dir := range usage {
				dirs = append(dirs, dir)
			}
			sort.Strings(dirs)
			for _, dir := range dirs {
				label := dir
				if dir != "/" {
					label += "/"
				}
				fmt.Printf("%-40s %s\n", label, storage.FormatSize(usage[dir]))
			}

		default:
			objects, stats, err := browser.List(ctx, recordingsPrefix)
			if err != nil {
				return fmt.Errorf("列出文件失败: %w", err)
			}
			storage.PrintReport(os.Stdout, cfg.MinioBucket, recordingsPrefix, objects, stats)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordingsCmd)

	recordingsCmd.Flags().StringVarP(&recordingsPrefix, "prefix", "p", "", "按前缀过滤文件或指定要操作的目录")
	recordingsCmd.Flags().BoolVarP(&recordingsUsage, "usage", "u", false, "按目录统计存储占用")
	recordingsCmd.Flags().BoolVarP(&recordingsDelete, "delete", "d", false, "删除指定目录及其下的所有文件")

	recordingsCmd.Example = `  # 列出所有录音
  voxnote recordings

  # 按前缀过滤
  voxnote recordings -p "audio/"

  # 按目录统计占用
  voxnote recordings -u

  # 删除目录及其下的所有文件
  voxnote recordings -d -p "audio/tmp/"`
}
