package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"track-forge/app/database"
	"track-forge/app/model"
	"track-forge/app/server"

	"github.com/spf13/cobra"
)

var generateOpts struct {
	wallet       string
	name         string
	artist       bool
	prompt       string
	instrumental bool
	vocal        string
	model        string
	title        string
	style        string
	lyrics       string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "同步执行一次完整的生成流水线并输出汇总",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := bootstrap()
		defer log.Close()

		services, err := server.NewServices(cfg, database.GetDB(), log)
		if err != nil {
			return err
		}
		defer services.Close(context.Background())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		owner := model.Owner{Wallet: generateOpts.wallet, Name: generateOpts.name, IsArtist: generateOpts.artist}
		req := model.GenerationRequest{
			Prompt:       generateOpts.prompt,
			Instrumental: generateOpts.instrumental,
			VocalType:    model.VocalType(generateOpts.vocal),
			Model:        model.ModelVersion(generateOpts.model),
			CustomMode:   generateOpts.title != "" || generateOpts.style != "" || generateOpts.lyrics != "",
			Title:        generateOpts.title,
			Style:        generateOpts.style,
			Lyrics:       generateOpts.lyrics,
		}

		summary, err := services.Workflow.Run(ctx, owner, req)
		if err != nil {
			return fmt.Errorf("%s: %w", model.ErrorKindName(err), err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateOpts.wallet, "wallet", "", "钱包地址")
	f.StringVar(&generateOpts.name, "name", "", "艺术家展示名")
	f.BoolVar(&generateOpts.artist, "artist", false, "按艺术家身份生成（不受每日次数限制）")
	f.StringVar(&generateOpts.prompt, "prompt", "", "提示词，至少 10 个字符")
	f.BoolVar(&generateOpts.instrumental, "instrumental", false, "纯音乐")
	f.StringVar(&generateOpts.vocal, "vocal", "", "人声类型: auto|male|female|none")
	f.StringVar(&generateOpts.model, "model", "", "模型版本: V3_5|V4|V4_5|V5")
	f.StringVar(&generateOpts.title, "title", "", "标题（高级模式）")
	f.StringVar(&generateOpts.style, "style", "", "风格（高级模式）")
	f.StringVar(&generateOpts.lyrics, "lyrics", "", "歌词（高级模式）")
	_ = generateCmd.MarkFlagRequired("wallet")
	_ = generateCmd.MarkFlagRequired("prompt")

	rootCmd.AddCommand(generateCmd)
}
