package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bzboard/internal/model"
)

func newProductsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List products you can file bugs in",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			products, err := e.client.Products(ctxOf(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": products})
		},
	}
}

func newMilestonesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milestones <product>",
		Short: "List a product's active milestones, components and versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			var (
				milestones []string
				info       model.ProductInfo
			)
			g, gctx := errgroup.WithContext(ctxOf(cmd))
			g.Go(func() (err error) { milestones, err = e.client.Milestones(gctx, args[0]); return })
			g.Go(func() (err error) { info, err = e.client.ProductInfo(gctx, args[0]); return })
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"product":    args[0],
				"milestones": milestones,
				"components": info.Components,
				"versions":   info.Versions,
			}})
		},
	}
	return cmd
}
