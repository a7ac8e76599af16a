package cmd

import (
	"context"
	"encoding/json"

	"track-forge/app/database"
	"track-forge/app/server"

	"github.com/spf13/cobra"
)

var limitOpts struct {
	wallet string
	artist bool
}

var limitCmd = &cobra.Command{
	Use:   "limit",
	Short: "查询钱包今日生成额度",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := bootstrap()
		defer log.Close()

		services, err := server.NewServices(cfg, database.GetDB(), log)
		if err != nil {
			return err
		}
		defer services.Close(context.Background())

		isArtist := services.Artists.IsArtist(limitOpts.wallet, limitOpts.artist)
		status, err := services.Limiter.CheckLimit(cmd.Context(), limitOpts.wallet, isArtist)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

func init() {
	limitCmd.Flags().StringVar(&limitOpts.wallet, "wallet", "", "钱包地址")
	limitCmd.Flags().BoolVar(&limitOpts.artist, "artist", false, "按艺术家身份查询")
	_ = limitCmd.MarkFlagRequired("wallet")

	rootCmd.AddCommand(limitCmd)
}
