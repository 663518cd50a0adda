package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// ObjectInfo 录音对象信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// RecordingBrowser 录音对象的运维工具：列表、统计与按前缀删除
type RecordingBrowser struct {
	client *minio.Client
	bucket string
}

// NewRecordingBrowser 创建录音浏览器
func NewRecordingBrowser(client *minio.Client, bucket string) *RecordingBrowser {
	return &RecordingBrowser{client: client, bucket: bucket}
}

func (b *RecordingBrowser) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶是否存在失败: %w", err)
	}
	if !exists {
		return fmt.Errorf("存储桶 %s 不存在", b.bucket)
	}
	return nil
}

// List 递归列出前缀下的所有对象，按 key 排序
func (b *RecordingBrowser) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return nil, nil, err
	}

	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}

		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}

		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, stats, nil
}

// UsageByFolder 按 key 的第一级目录汇总占用空间
func (b *RecordingBrowser) UsageByFolder(ctx context.Context, prefix string) (map[string]int64, error) {
	objects, _, err := b.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	usage := make(map[string]int64)
	for _, obj := range objects {
		folder := "/"
		if i := strings.Index(obj.Key, "/"); i > 0 {
			folder = obj.Key[:i]
		}
		usage[folder] += obj.Size
	}
	return usage, nil
}

// DeletePrefix 删除前缀下的所有对象，返回删除数量
func (b *RecordingBrowser) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if strings.Trim(prefix, "/") == "" {
		return 0, fmt.Errorf("拒绝删除整个存储桶，请指定前缀")
	}

	objects, _, err := b.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, fmt.Errorf("目录 %s 为空或不存在", prefix)
	}

	objectsCh := make(chan minio.ObjectInfo, len(objects))
	for _, obj := range objects {
		objectsCh <- minio.ObjectInfo{Key: obj.Key}
	}
	close(objectsCh)

	for rmErr := range b.client.RemoveObjects(ctx, b.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rmErr.Err != nil {
			return 0, fmt.Errorf("删除对象 %s 失败: %w", rmErr.ObjectName, rmErr.Err)
		}
	}
	return len(objects), nil
}

// PrintReport 输出前缀下的录音清单
func PrintReport(w io.Writer, bucket, prefix string, objects []ObjectInfo, stats *BucketStats) {
	fmt.Fprintf(w, "存储桶: %s\n", bucket)
	fmt.Fprintf(w, "前缀过滤: %s\n", prefix)
	fmt.Fprintf(w, "总文件数: %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "总存储大小: %s\n", FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(w, "最后更新时间: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	}

	currentDir := ""
	for _, obj := range objects {
		dir := path.Dir(obj.Key)
		if dir != currentDir {
			fmt.Fprintf(w, "%s/\n", dir)
			currentDir = dir
		}
		fmt.Fprintf(w, "  %s (%s)\n", path.Base(obj.Key), FormatSize(obj.Size))
	}
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
