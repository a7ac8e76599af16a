package cmd

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "track-forge",
	Short:   "AI 音乐生成与铸造服务",
	Long:    "根据提示词生成音乐，上传到内容寻址存储并为每首曲目铸造链上凭证",
	Version: "1.0.0",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认 ./data/config.yaml 或 ./config.yaml）")
}

// initConfig 先加载 .env，再读取配置文件和环境变量
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println(".env 读取失败:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./data") // 相对于当前工作目录的 data 文件夹
		viper.AddConfigPath(".")      // 当前目录
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// generation.api_key 对应 TRACK_FORGE_GENERATION_API_KEY
	viper.SetEnvPrefix("TRACK_FORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
