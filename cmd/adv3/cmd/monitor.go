package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jroimartin/gocui"
	"github.com/roffe/adv3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "live printer status dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(c *adv3.Controller) error {
			g, err := gocui.NewGui(gocui.OutputNormal)
			if err != nil {
				return err
			}
			defer g.Close()
			// gocui draws its own colors
			color.NoColor = true

			g.SetManagerFunc(layout)
			if err := initKeybindings(g, c); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			eg, gctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				err := c.Poll(gctx, adv3.DefaultPollInterval)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			eg.Go(func() error {
				refresh(gctx, g, c)
				return nil
			})
			eg.Go(func() error {
				<-gctx.Done()
				g.Update(func(g *gocui.Gui) error {
					return gocui.ErrQuit
				})
				return nil
			})

			if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
				cancel()
				eg.Wait()
				return err
			}
			cancel()
			return eg.Wait()
		})
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// refresh redraws on every status update, and every second for upload
// progress while polls are skipped.
func refresh(ctx context.Context, g *gocui.Gui, c *adv3.Controller) {
	sub := c.Subscribe(ctx)
	t := time.NewTicker(time.Second)
	defer t.Stop()
	st := c.Status()
	for {
		draw(g, c, st)
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sub.Chan():
			if !ok {
				return
			}
			st = s
		case <-t.C:
		}
	}
}

func draw(g *gocui.Gui, c *adv3.Controller, st adv3.DeviceStatus) {
	g.Update(func(g *gocui.Gui) error {
		v, err := g.View("status")
		if err != nil {
			return err
		}
		v.Clear()
		fmt.Fprintf(v, "host     %s\n", c.Session().Addr())
		fmt.Fprintf(v, "variant  %s\n", c.Session().Variant())
		fmt.Fprintf(v, "wire     %s\n\n", c.Session().Stats())
		writeStatus(v, st)
		if job := c.Job(); job != nil {
			rem, total := job.Progress()
			fmt.Fprintf(v, "\nupload   %s %d/%d\n", job.Name, total-rem, total)
		}
		return nil
	})
}

func layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("status", 0, 0, maxX-1, maxY-6); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Adventurer 3"
		v.Wrap = true
	}
	if v, err := g.SetView("help", 0, maxY-5, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Help"
		fmt.Fprintln(v, "<Q, Ctrl-C> Quit")
		fmt.Fprintln(v, "<L> Light on  <O> Light off")
		fmt.Fprintln(v, "<S> Stop print")
	}
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

func initKeybindings(g *gocui.Gui, c *adv3.Controller) error {
	if err := g.SetKeybinding("", 'q', gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}
	action := func(fn func() error) func(g *gocui.Gui, v *gocui.View) error {
		return func(g *gocui.Gui, v *gocui.View) error {
			// run outside the ui loop, the controller may be busy
			go func() {
				if err := fn(); err != nil {
					g.Update(func(g *gocui.Gui) error {
						if v, err2 := g.View("help"); err2 == nil {
							fmt.Fprintln(v, "error:", err)
						}
						return nil
					})
				}
			}()
			return nil
		}
	}
	if err := g.SetKeybinding("", 'l', gocui.ModNone, action(func() error { return c.Led(true) })); err != nil {
		return err
	}
	if err := g.SetKeybinding("", 'o', gocui.ModNone, action(func() error { return c.Led(false) })); err != nil {
		return err
	}
	if err := g.SetKeybinding("", 's', gocui.ModNone, action(c.StopJob)); err != nil {
		return err
	}
	return nil
}
