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
	"os"

	"github.com/apex/log"
	"github.com/blacktop/symdb/internal/config"
	"github.com/blacktop/symdb/internal/db"
	"github.com/blacktop/symdb/internal/merge"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	mergeCmd.Flags().Int("batch-size", config.DefaultBatchSize, "symbols inserted per statement")
	viper.BindPFlag("merge.batch-size", mergeCmd.Flags().Lookup("batch-size"))
}

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:           "merge <main-db> <source-db>",
	Short:         "Merge the builds of one symbol database into another",
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if _, err := os.Stat(path); err != nil {
				return errors.Wrapf(err, "database %s", path)
			}
		}

		batch := viper.GetInt("merge.batch-size")

		dst, err := db.Open(config.Database{Driver: config.DriverSqlite, Path: args[0], BatchSize: batch})
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", args[0])
		}
		defer dst.Close()

		src, err := db.Open(config.Database{Driver: config.DriverSqlite, Path: args[1], BatchSize: batch, ReadOnly: true})
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", args[1])
		}
		defer src.Close()

		log.WithField("from", args[1]).WithField("into", args[0]).Info("Merging")

		stats, err := runInterruptible(func(ctx context.Context) (*merge.Stats, error) {
			return merge.Merge(ctx, dst, src)
		})
		if stats != nil {
			log.Info(stats.String())
		}
		if err != nil {
			return errors.Wrap(err, "failed to merge")
		}

		return nil
	},
}
