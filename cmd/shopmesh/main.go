// Command shopmesh runs the conversational shopping assistant.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/shopmesh"
	"github.com/hupe1980/shopmesh/config"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shopmesh",
		Short:         "ShopMesh conversational shopping assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default shopmesh.yaml if present)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())

	return cmd
}

func loadConfig() (config.Config, error) {
	path := cfgFile
	if path == "" {
		path = "shopmesh.yaml"
	}
	return config.Load(path)
}

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			app, err := shopmesh.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.BuildIndex(ctx); err != nil {
				return fmt.Errorf("build search index: %w", err)
			}

			return app.Serve(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")

	return cmd
}

func newChatCmd() *cobra.Command {
	var (
		userID    string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a single message and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			app, err := shopmesh.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.BuildIndex(ctx); err != nil {
				return fmt.Errorf("build search index: %w", err)
			}

			reply, products, err := app.Chat(ctx, userID, sessionID, args[0])
			if err != nil {
				return err
			}

			fmt.Println(reply)
			for _, p := range products {
				fmt.Printf("  %s  %s  $%.2f\n", p.ID, p.Name, p.Price)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "local", "shopper user id")
	cmd.Flags().StringVar(&sessionID, "session", "default", "conversation session id")

	return cmd
}
