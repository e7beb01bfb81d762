package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roffe/adv3"
	"github.com/roffe/adv3/pkg/bar"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var printCmd = &cobra.Command{
	Use:   "print <file>",
	Short: "upload a file and start printing it",
	Long: `Upload a file to the printer and start the print. With --translate the
file is translated first and sent under its name without extension. Ctrl-C
cancels a running upload.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]
		jobName := filepath.Base(filename)

		if tr, _ := cmd.Flags().GetBool("translate"); tr {
			p, err := loadParams(cmd)
			if err != nil {
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

		if yes, _ := cmd.Flags().GetBool(flagYes); !yes {
			if !yesNo(fmt.Sprintf("Print %s (%d bytes)?", jobName, fi.Size())) {
				return nil
			}
		}

		return withController(cmd, func(c *adv3.Controller) error {
			job := adv3.NewJob(jobName)
			b := bar.New(fi.Size(), "uploading "+job.Name)
			job.OnProgress = bar.Remaining(b)
			start := time.Now()
			if err := c.Print(cmd.Context(), f, fi.Size(), job); err != nil {
				return err
			}
			log.Infof("sent %s in %s, print started", job.Name, time.Since(start).Round(time.Millisecond))

			if watch, _ := cmd.Flags().GetBool("watch"); watch {
				return watchPrint(cmd.Context(), c)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(printCmd)
	addParamFlags(printCmd)
	f := printCmd.Flags()
	f.BoolP("translate", "t", false, "translate the file before sending")
	f.BoolP(flagYes, "y", false, "don't ask for confirmation")
	f.BoolP("watch", "w", false, "follow the print progress")
}

// watchPrint polls the printer and shows the SD card progress until the
// printer stops building or ctx is done.
func watchPrint(ctx context.Context, c *adv3.Controller) error {
	if err := c.UpdateStatus(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := c.Poll(gctx, adv3.DefaultPollInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		var b *progressbar.ProgressBar
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			st := c.Status()
			if st.State != adv3.StateBuilding {
				log.Infof("printer is %s", st.State)
				return nil
			}
			if st.ProgressMax > 0 {
				if b == nil {
					b = bar.New(int64(st.ProgressMax), "printing")
				}
				b.Set64(int64(st.Progress))
			}
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
			}
		}
	})
	return g.Wait()
}
