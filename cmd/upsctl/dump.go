package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/cruppstahl/ups"
	"github.com/cruppstahl/ups/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Print every key and record of a database, duplicates included",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		start := time.Now()
		var n int
		defer func() { logging.Command("dump", args[0], time.Since(start), err, "items", n) }()

		env, err := openEnv(args[0], ups.ReadOnly, false)
		if err != nil {
			return err
		}
		defer env.Close()
		db, err := env.OpenDatabase(uint16(viper.GetUint("db")), ups.ReadOnly)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err = dump(cmd.OutOrStdout(), db, viper.GetBool("hex"))
		return err
	},
}

func init() {
	dumpCmd.Flags().Uint("db", uint(ups.DefaultDatabaseName), "database name")
	dumpCmd.Flags().Bool("hex", false, "print keys and records hex encoded")
}

// encodeField renders b for the tab-separated dump format.
func encodeField(b []byte, useHex bool) string {
	if useHex {
		return hex.EncodeToString(b)
	}
	return string(b)
}

// dump writes one key<TAB>record line per item and returns the number of
// items written.
func dump(out io.Writer, db *ups.Database, useHex bool) (int, error) {
	w := bufio.NewWriter(out)
	c, err := db.NewCursor(nil)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	n := 0
	for {
		key, rec, ok, err := c.TryMove(ups.MoveNext)
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		fmt.Fprintf(w, "%s\t%s\n", encodeField(key, useHex), encodeField(rec, useHex))
		n++
	}
	return n, w.Flush()
}
