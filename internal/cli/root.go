// Package cli 实现 flake 命令行：启动服务、离线生成与解码 ID。
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand 构造 flake 根命令
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "flake",
		Short:        "Snowflake ID service",
		Long:         "flake generates 64-bit time-ordered IDs (41-bit timestamp, 5-bit datacenter, 5-bit worker, 12-bit sequence).",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newGenCommand(), newDecodeCommand())
	return root
}
