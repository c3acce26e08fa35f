package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Qiujialin/DouyinDm/internal/config"
	"github.com/Qiujialin/DouyinDm/internal/resolver"
	"github.com/Qiujialin/DouyinDm/internal/session"
	"github.com/Qiujialin/DouyinDm/internal/sign"
	"github.com/Qiujialin/DouyinDm/internal/sink"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <web_rid>",
	Short: "Stream a live room's chat to the terminal",
	Long: `Resolves the public room handle, connects to the room's push
endpoint, and prints chat messages until interrupted with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCookie(); err != nil {
			return err
		}
		logger := newLogger()
		ua := userAgent
		if ua == "" {
			ua = config.DefaultUserAgent
		}

		signer, err := sign.NewJSSigner(sdkPath, ua, sign.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("load signature sdk: %w", err)
		}

		resOpts := []resolver.Option{
			resolver.WithSigner(signer),
			resolver.WithLogger(logger),
		}
		if enterURL != "" {
			resOpts = append(resOpts, resolver.WithBaseURL(enterURL))
		}
		res := resolver.NewClient(cookie, ua, resOpts...)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		room, err := res.Resolve(ctx, args[0])
		if err != nil {
			return fmt.Errorf("resolve room: %w", err)
		}
		if !room.Live {
			return fmt.Errorf("room %s is not live", args[0])
		}
		fmt.Printf("watching %s (%s) by %s\n", room.Title, room.WebRID, room.Owner)

		sess := session.New(session.Config{
			BaseURL:   pushURL,
			RoomID:    room.RoomID,
			WebRID:    room.WebRID,
			Title:     room.Title,
			Owner:     room.Owner,
			Cookie:    cookie,
			UserAgent: ua,
		}, signer, sink.NewConsole(os.Stdout), logger)

		if err := sess.Start(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}

		select {
		case <-ctx.Done():
			sess.Stop()
		case <-sess.Done():
			if err := sess.Err(); err != nil {
				return fmt.Errorf("connection lost: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
