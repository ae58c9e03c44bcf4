// Command micarray captures audio from the microphone array FPGA and
// runs the offline reference beamformer used to check it.
//
// Usage:
//
//	micarray capture [-o output.wav] [--seconds N]
//	micarray sweep [--count N]
//	micarray beamform --angle A [-o out.wav] mic0.wav mic1.wav ...
//	micarray scan [--from A --to B --step S] mic0.wav mic1.wav ...
//
// Settings come from micarray.toml (in /opt or the working directory),
// MICARRAY_* environment variables, and flags, in increasing priority.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jbrzusto/micarray/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app carries state shared by all subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// load binds the invoked command's flags to their config keys, reads
// the configuration and sets up logging.  Binding happens here rather
// than at construction so commands sharing a key don't steal each
// other's flags.
func (a *app) load(cmd *cobra.Command, binds map[string]string) (*config, error) {
	for key, name := range binds {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, err
		}
	}
	cfg, err := loadConfig(a.v, a.cfgFile)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level, cfg.Log.JSON)
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "micarray",
		Short:         "Capture and beamforming tools for the microphone array FPGA",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: micarray.toml in /opt or .)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "log as JSON instead of console text")
	bindRoot(a.v, pf)

	root.AddCommand(
		newCaptureCmd(a),
		newSweepCmd(a),
		newBeamformCmd(a),
		newScanCmd(a),
	)
	return root
}

func bindRoot(v *viper.Viper, pf *pflag.FlagSet) {
	v.BindPFlag("log.level", pf.Lookup("log-level"))
	v.BindPFlag("log.json", pf.Lookup("log-json"))
}

func main() {
	logger.Init("info", false)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("micarray")
	}
}
