package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sampler/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "管理任务配置",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "写入默认任务配置",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("配置文件 %s 已存在，使用 --force 覆盖", path)
			}
			if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
				return err
			}
			log.Printf("✅ 默认配置已写入 %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "覆盖已存在的配置文件")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "显示校验后的有效配置（含默认值和环境变量覆盖）",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("序列化配置失败：%w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
