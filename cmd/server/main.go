package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/hsn0918/netkb/internal/server"
	"github.com/hsn0918/netkb/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "netkb",
	Short: "自托管网络运维知识库检索服务",
	Long:  "netkb 提供文档摄取、父子分块、向量化与混合检索的 REST 服务。",
	Run: func(cmd *cobra.Command, args []string) {
		// 加载 .env（缺失时忽略），再由 fx 装配并运行整个应用
		_ = godotenv.Load()

		app := fx.New(server.Module)
		defer logger.Sync()
		app.Run()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("命令执行失败: %v", err)
	}
}
