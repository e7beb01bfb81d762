package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/roffe/adv3"
	"github.com/roffe/adv3/pkg/bar"
	"github.com/roffe/adv3/pkg/translate"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const consoleHelp = `p                 status
l, l0             light on, off
s                 emergency stop
j <file> [json]   print file, translated with the parameter file if given
jobstop           stop the print
G..., M...        send g-code
q                 quit`

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "interactive printer console",
	Long:  "Interactive console, status is polled in the background.\n\n" + consoleHelp,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(c *adv3.Controller) error {
			mi, err := c.MachineInfo()
			if err != nil {
				return err
			}
			fmt.Printf("Connected %s, %s firmware %s\n", c.Session().Addr(), mi.Name, mi.Firmware)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// Poll issues one query per tick, four ticks refresh everything
				err := c.Poll(gctx, 3*time.Second/4)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				defer cancel()
				return console(gctx, c)
			})
			return g.Wait()
		})
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func console(ctx context.Context, c *adv3.Controller) error {
	prompt := promptui.Prompt{Label: ">"}
	for ctx.Err() == nil {
		line, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !c.Connected() {
			if err := c.Connect(ctx); err != nil {
				return fmt.Errorf("reconnect failed: %w", err)
			}
		}
		quit, err := consoleCommand(ctx, c, line)
		if err != nil {
			fmt.Println(bad("Error:"), err)
		}
		if quit {
			return nil
		}
	}
	return nil
}

func consoleCommand(ctx context.Context, c *adv3.Controller, line string) (bool, error) {
	switch first := strings.ToLower(line[:1]); {
	case first == "q":
		return true, nil
	case first == "p":
		writeStatus(os.Stdout, c.Status())
	case first == "l":
		return false, c.Led(!strings.HasSuffix(line, "0"))
	case first == "s":
		if err := c.EmergencyStop(); err != nil {
			return false, err
		}
		fmt.Println("Stop")
	case strings.HasPrefix(line, "jobstop"):
		if err := c.StopJob(); err != nil {
			return false, err
		}
		fmt.Println("Stop Job")
	case first == "j":
		if err := consolePrint(ctx, c, strings.Fields(line[1:])); err != nil {
			return false, err
		}
		fmt.Println("Start Job")
	case first == "g" || first == "m":
		reply, err := c.Send(strings.ToUpper(line[:1]) + line[1:])
		if err != nil {
			return false, err
		}
		printReply(reply)
	case first == "?" || first == "h":
		fmt.Println(consoleHelp)
	default:
		return false, fmt.Errorf("unknown command %q, ? for help", line)
	}
	return false, nil
}

func consolePrint(ctx context.Context, c *adv3.Controller, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: j <file> [params.json]")
	}
	filename := args[0]
	jobName := filepath.Base(filename)
	if len(args) > 1 && strings.HasSuffix(args[1], ".json") {
		p, err := translate.LoadParameters(args[1])
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		tmp, err := os.CreateTemp("", "adv3-*.g")
		if err != nil {
			return err
		}
		tmp.Close()
		defer os.Remove(tmp.Name())
		if err := translateFile(filename, tmp.Name(), p); err != nil {
			return err
		}
		filename = tmp.Name()
		jobName = strings.TrimSuffix(jobName, filepath.Ext(jobName))
	}

	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	job := adv3.NewJob(jobName)
	job.OnProgress = bar.Remaining(bar.New(fi.Size(), "uploading "+job.Name))
	return c.Print(ctx, f, fi.Size(), job)
}
