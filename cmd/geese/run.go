package main

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/lao-tseu-is-alive/go-flocking-geese/internal/game"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Show the flock in a window",
		Long: `Show the flock in a window.

  [space]  run / pause the simulation
  [r]      reset the flock at the centre
  [mouse]  hold the left button to attract the geese`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			width, height := int(rt.cfg.WorldWidth), int(rt.cfg.WorldHeight)
			g, err := game.New(ctx, rt.flock, rt.client, width, height, rt.cfg.FlockSize, rt.logger)
			if err != nil {
				return err
			}
			defer g.Close()

			ebiten.SetWindowSize(width, height)
			ebiten.SetWindowTitle("Flocking Geese")
			if err := ebiten.RunGame(g); err != nil {
				return fmt.Errorf("game stopped: %w", err)
			}
			return nil
		},
	}
}
