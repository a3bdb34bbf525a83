/*
Copyright © 2018-2026 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/blacktop/symdb/internal/colors"
	"github.com/blacktop/symdb/internal/config"
	"github.com/blacktop/symdb/internal/db"
	"github.com/blacktop/symdb/internal/demangle"
	"github.com/blacktop/symdb/internal/syms"
	"github.com/blacktop/symdb/pkg/symbols"
	"github.com/caarlos0/ctrlc"
	perrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// Verbose boolean flag for verbose logging
	Verbose bool
	// Color boolean flag for colorized output
	Color bool
	// AppVersion stores the plugin's version
	AppVersion string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "symdb <root-directory> [path-to-swift-demangle]",
	Short: "Extract the symbols of Apple OS builds into a database",
	Long: `Walk every "<device> <version> (<build>) [arch]" directory below the root,
read the __TEXT,__text symbols of every Mach-O image under its Symbols
directory, demangle them and store them by build, file and address.`,
	Args:          cobra.RangeArgs(1, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		if cmd.Flags().Changed("color") || viper.IsSet("color") {
			c := viper.GetBool("color")
			colors.Init(&c)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		if fi, err := os.Stat(root); err != nil {
			return perrors.Wrapf(err, "failed to read root directory")
		} else if !fi.IsDir() {
			return perrors.Errorf("root %s is not a directory", root)
		}
		if len(args) > 1 {
			viper.Set("demangler.path", args[1])
		}

		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}

		sess := startDemangler(conf.Demangler)
		defer sess.Close()

		resolver, err := symbols.NewResolver(sess, conf.Demangler.CacheSize)
		if err != nil {
			return perrors.Wrap(err, "failed to create demangler")
		}

		d, err := db.Open(conf.Database)
		if err != nil {
			return perrors.Wrap(err, "failed to open database")
		}
		defer func() {
			if err := d.Close(); err != nil {
				log.WithError(err).Error("failed to close database")
			}
		}()

		ext := &syms.Extractor{
			DB:             d,
			Resolver:       resolver,
			Progress:       conf.Progress,
			ProgressOutput: os.Stderr,
		}

		start := time.Now()
		stats, err := runInterruptible(func(ctx context.Context) (*syms.Stats, error) {
			return ext.Run(ctx, root)
		})
		if stats != nil {
			log.WithField("took", time.Since(start).Round(time.Millisecond)).Info(stats.String())
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Warn("Interrupted, stopped between files")
				return nil
			}
			return perrors.Wrap(err, "failed to extract symbols")
		}

		log.WithField("db", dbLocation(conf.Database)).Info("Done")
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/symdb/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&Color, "color", false, "colorize output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))
	viper.BindEnv("color", "CLICOLOR")

	rootCmd.Flags().String("db", config.DefaultDatabasePath, "sqlite database to write")
	rootCmd.Flags().Duration("timeout", config.DefaultTimeout, "swift-demangle read timeout (0 waits forever)")
	rootCmd.Flags().Bool("progress", false, "show a progress bar per build")
	viper.BindPFlag("database.path", rootCmd.Flags().Lookup("db"))
	viper.BindPFlag("demangler.timeout", rootCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("progress", rootCmd.Flags().Lookup("progress"))

	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(symbolicateCmd)

	if AppVersion != "" {
		rootCmd.Version = AppVersion
	}
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.Dir()
		cobra.CheckErr(err)

		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("symdb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// startDemangler falls back to storing Swift names mangled when the helper
// can't be spawned.
func startDemangler(conf config.Demangler) *demangle.Session {
	if conf.Path == "" {
		log.Warn("No swift-demangle given, Swift symbols are stored mangled")
		return demangle.Disabled()
	}
	sess, err := demangle.Start(demangle.Config{
		Path:        conf.Path,
		ReadTimeout: conf.Timeout,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to start swift-demangle, Swift symbols are stored mangled")
		return demangle.Disabled()
	}
	log.WithField("helper", conf.Path).Debug("Started swift-demangle")
	return sess
}

// runInterruptible runs task until it returns or the user hits Ctrl-C. On
// Ctrl-C the task's context is canceled and the task is waited for.
func runInterruptible[T any](task func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		out  T
		terr error
	)
	done := make(chan struct{})
	err := ctrlc.Default.Run(ctx, func() error {
		defer close(done)
		out, terr = task(ctx)
		return terr
	})
	if errors.As(err, &ctrlc.ErrorCtrlC{}) {
		log.Warn("Exiting...")
		cancel()
		<-done
		if terr == nil {
			terr = context.Canceled
		}
		return out, terr
	}
	return out, err
}

func dbLocation(conf config.Database) string {
	if conf.Driver == config.DriverPostgres {
		return fmt.Sprintf("postgres://%s:%s/%s", conf.Host, conf.Port, conf.Name)
	}
	if abs, err := filepath.Abs(conf.Path); err == nil {
		return abs
	}
	return conf.Path
}
