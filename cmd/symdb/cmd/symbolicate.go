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
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/blacktop/symdb/internal/colors"
	"github.com/blacktop/symdb/internal/config"
	"github.com/blacktop/symdb/internal/db"
	"github.com/blacktop/symdb/internal/symbolicate"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	symbolicateCmd.Flags().Int("cache-size", 4096, "symbol lookups to remember")
	viper.BindPFlag("symbolicate.cache-size", symbolicateCmd.Flags().Lookup("cache-size"))
}

// symbolicateCmd represents the symbolicate command
var symbolicateCmd = &cobra.Command{
	Use:           "symbolicate <crash-log> <symbols-db>",
	Aliases:       []string{"sym"},
	Short:         "Fill in the redacted frames of a crash log",
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to read crash log")
		}
		if _, err := os.Stat(args[1]); err != nil {
			return errors.Wrapf(err, "database %s", args[1])
		}

		d, err := db.Open(config.Database{Driver: config.DriverSqlite, Path: args[1], BatchSize: config.DefaultBatchSize, ReadOnly: true})
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", args[1])
		}
		defer d.Close()

		s, err := symbolicate.New(d, viper.GetInt("symbolicate.cache-size"), colors.Enabled())
		if err != nil {
			return err
		}

		res, err := s.Symbolicate(string(text))
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"os":    fmt.Sprintf("%s %s (%s)", res.Meta.OSType, res.Meta.OSVersion, res.Meta.OSBuild),
			"arch":  res.Meta.Arch,
			"found": fmt.Sprintf("%d/%d", res.Resolved, res.Frames),
		}).Debug("Symbolicated")

		fmt.Print(res.Text)
		return nil
	},
}
