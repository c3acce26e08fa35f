package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Qiujialin/DouyinDm/internal/config"
	"github.com/Qiujialin/DouyinDm/internal/resolver"
	"github.com/Qiujialin/DouyinDm/internal/sign"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <web_rid>",
	Short: "Look up a room's metadata without connecting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCookie(); err != nil {
			return err
		}
		logger := newLogger()
		ua := userAgent
		if ua == "" {
			ua = config.DefaultUserAgent
		}

		resOpts := []resolver.Option{resolver.WithLogger(logger)}
		if enterURL != "" {
			resOpts = append(resOpts, resolver.WithBaseURL(enterURL))
		}
		// Signing is optional for lookups; skip it when the SDK is absent.
		if signer, err := sign.NewJSSigner(sdkPath, ua, sign.WithLogger(logger)); err == nil {
			resOpts = append(resOpts, resolver.WithSigner(signer))
		} else {
			logger.Warn("signature sdk unavailable, resolving unsigned", "error", err)
		}

		res := resolver.NewClient(cookie, ua, resOpts...)
		room, err := res.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("room_id: %s\n", room.RoomID)
		fmt.Printf("web_rid: %s\n", room.WebRID)
		fmt.Printf("title:   %s\n", room.Title)
		fmt.Printf("owner:   %s\n", room.Owner)
		fmt.Printf("live:    %t\n", room.Live)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
