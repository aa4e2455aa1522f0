package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/IvanBrykalov/fragcache/boundary"
	"github.com/IvanBrykalov/fragcache/internal/app"
	"github.com/IvanBrykalov/fragcache/resolver"
)

func (c *CLI) newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [payload-file]",
		Short: "Render a payload to HTML (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := c.setup(cmd)
			if err != nil {
				return err
			}
			modeFlag, _ := cmd.Flags().GetString("mode")
			mode, err := resolver.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			if m, _ := cmd.Flags().GetString("manifest"); m != "" {
				cfg.Manifest = m
			}
			key, _ := cmd.Flags().GetString("key")

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return zerr.With(zerr.Wrap(err, "open payload "+args[0]), "path", args[0])
				}
				defer f.Close()
				in = f
			}
			payload, err := io.ReadAll(in)
			if err != nil {
				return zerr.Wrap(err, "read payload")
			}

			res, err := app.NewResolver(cfg, log, nil, nil)
			if err != nil {
				return err
			}
			b := boundary.New(boundary.Options{Mode: mode, Logger: log})
			if err := b.Wrap(res.Component(mode, string(payload), key)).Render(cmd.Context(), cmd.OutOrStdout()); err != nil {
				return err
			}
			if strict, _ := cmd.Flags().GetBool("strict"); strict && b.Err() != nil {
				return b.Err()
			}
			return nil
		},
	}
	cmd.Flags().String("mode", "ssr", "decoding mode: ssr or csr")
	cmd.Flags().String("manifest", "", "module map YAML (overrides FRAGCACHE_MANIFEST)")
	cmd.Flags().String("key", "cli", "cache key reported in logs")
	cmd.Flags().Bool("strict", false, "exit non-zero when the fallback was rendered")
	return cmd
}
