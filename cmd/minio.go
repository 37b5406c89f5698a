package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"BeatFlow/config"
	"BeatFlow/storage"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
	minioDelete    bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的文件，支持列出文件、查看统计信息、递归显示目录结构、删除目录等功能。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		// 加载配置
		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		// 初始化MinIO客户端
		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		// 根据参数执行不同的操作
		if minioDelete {
			// 删除目录
			if minioPrefix == "" {
				log.Fatal("删除操作需要指定目录前缀")
			}
			fmt.Printf("\n删除目录: %s\n", minioPrefix)
			if err := storage.RemovePrefix(cfg, minioPrefix); err != nil {
				log.Fatalf("删除目录失败: %v", err)
			}
		} else if minioStats || minioRecursive {
			// 显示存储桶统计信息
			fmt.Printf("\n获取存储桶统计信息 (前缀: %s)...\n", minioPrefix)
			if err := storage.PrintBucketStatus(cfg, minioPrefix); err != nil {
				log.Fatalf("获取存储桶统计信息失败: %v", err)
			}
		} else {
			// 列出文件
			fmt.Printf("\n列出存储桶中的文件 (前缀: %s)...\n", minioPrefix)
			objects, _, err := storage.ListBucketObjects(cfg, minioPrefix, false)
			if err != nil {
				log.Fatalf("列出文件失败: %v", err)
			}
			for _, obj := range objects {
				fmt.Printf("  %s (%d bytes)\n", obj.Key, obj.Size)
			}
		}

		fmt.Println("\nMinIO操作完成！")
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	// 添加命令行参数
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件或指定要操作的目录")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "递归显示目录结构")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定目录及其下的所有文件")

	// 添加使用说明
	minioCmd.Example = `  # 列出所有文件
  beatflow minio

  # 按前缀过滤文件
  beatflow minio -p "audio/"

  # 显示存储桶统计信息
  beatflow minio -s`
}
