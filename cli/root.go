// Package cli 命令行入口：sampler run / config init / config show
package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"sampler/config"
)

// Version 版本号
var Version = "2.0.0"

const defaultConfigPath = "mission.yaml"

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sampler",
		Short:         "sampler - 探空火箭大气采样载荷飞行控制",
		Long:          `按任务时间执行初始压力检查、储气罐分配、逐个采样和热气排放，全程记录压力与事件。`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", defaultConfigPath, "任务配置文件路径")

	root.AddCommand(newRunCommand())
	root.AddCommand(newConfigCommand())
	return root
}

// Execute 执行根命令
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		log.Printf("❌ %v", err)
		return err
	}
	return nil
}

// loadOrCreateConfig 配置文件不存在时写入默认配置
func loadOrCreateConfig(configPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.GetDefaultConfig()
		if err := config.SaveConfig(cfg, configPath); err != nil {
			return nil, fmt.Errorf("保存默认配置失败：%w", err)
		}
		log.Printf("📝 创建默认配置文件: %s", configPath)
		return cfg, nil
	}

	return config.LoadConfig(configPath)
}
