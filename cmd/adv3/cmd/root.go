package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go"
	"github.com/roffe/adv3"
	"github.com/roffe/adv3/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "adv3",
	Short: "FlashForge Adventurer 3 tool",
	Long: `Translate sliced g-code for the Adventurer 3, upload and print it,
and control the printer over its network port`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

const (
	flagHost        = "host"
	flagPort        = "port"
	flagTimeout     = "timeout"
	flagDebug       = "debug"
	flagLogLevel    = "log-level"
	flagParams      = "params"
	flagRetries     = "retries"
	flagMinFirmware = "min-firmware"
	flagYes         = "yes"
)

var (
	cfg = config.Load()
	log = logrus.New()
)

func init() {
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagHost, "H", cfg.Host, "printer address (ADV3_HOST)")
	pf.IntP(flagPort, "p", cfg.Port, "printer control port (ADV3_PORT)")
	pf.Duration(flagTimeout, cfg.Timeout, "reply timeout (ADV3_TIMEOUT)")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.String(flagLogLevel, cfg.LogLevel, "log level (ADV3_LOG_LEVEL)")
	pf.String(flagParams, cfg.Params, "translation parameter file (ADV3_PARAMS)")
	pf.Int(flagRetries, cfg.Retries, "connect attempts (ADV3_RETRIES)")
	pf.String(flagMinFirmware, cfg.MinFirmware, "refuse printers with older firmware (ADV3_MIN_FIRMWARE)")
}

func setupLogging(cmd *cobra.Command) error {
	level, _ := cmd.Flags().GetString(flagLogLevel)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	if debug, _ := cmd.Flags().GetBool(flagDebug); debug && lvl < logrus.DebugLevel {
		lvl = logrus.DebugLevel
	}
	log.SetLevel(lvl)
	return nil
}

// connect opens a controller on the printer from the flags, retrying while
// the printer can't be reached.
func connect(ctx context.Context, cmd *cobra.Command) (*adv3.Controller, error) {
	f := cmd.Flags()
	host, _ := f.GetString(flagHost)
	if host == "" {
		return nil, errors.New("no printer address, use --host or ADV3_HOST")
	}
	port, _ := f.GetInt(flagPort)
	timeout, _ := f.GetDuration(flagTimeout)
	minFirmware, _ := f.GetString(flagMinFirmware)
	retries, _ := f.GetInt(flagRetries)
	if retries < 1 {
		retries = 1
	}

	s, err := adv3.New(host,
		adv3.OptPort(port),
		adv3.OptTimeout(timeout),
		adv3.OptLogger(log),
		adv3.OptMinimumFirmware(minFirmware),
	)
	if err != nil {
		return nil, err
	}
	c := adv3.NewController(s)

	err = retry.Do(
		func() error {
			return c.Connect(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(retries)),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var ce *adv3.ConnectionError
			return errors.As(err, &ce) && adv3.IsRecoverable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Warnf("connect attempt %d failed", n+1)
		}),
	)
	if err != nil {
		return nil, err
	}
	log.WithField("variant", s.Variant()).Debugf("connected to %s", s.Addr())
	return c, nil
}

// withController connects, runs fn and closes the controller again.
func withController(cmd *cobra.Command, fn func(c *adv3.Controller) error) error {
	c, err := connect(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.WithError(err).Warn("disconnect failed")
		}
		log.Debug(c.Session().Stats().String())
	}()
	return fn(c)
}

func printReply(reply string) {
	fmt.Println(trimReply(reply))
}
