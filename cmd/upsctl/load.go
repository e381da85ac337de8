package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cruppstahl/ups"
	"github.com/cruppstahl/ups/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var loadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Insert tab-separated key/record lines in one transaction",
	Long: `Reads key<TAB>record lines from --input (default stdin) and inserts
them into the database inside a single transaction. The file and the
database are created when missing. Existing keys are overwritten unless
--dups is set, in which case records are appended as duplicates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		start := time.Now()
		var n int
		defer func() { logging.Command("load", args[0], time.Since(start), err, "items", n) }()

		in := cmd.InOrStdin()
		if path := viper.GetString("input"); path != "" && path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		env, err := openEnv(args[0], ups.EnableTransactions, true)
		if err != nil {
			return err
		}
		defer env.Close()
		db, err := openOrCreateDatabase(env, uint16(viper.GetUint("db")), viper.GetBool("dups"))
		if err != nil {
			return err
		}
		defer db.Close()

		n, err = load(env, db, in, viper.GetBool("dups"), viper.GetBool("hex"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d items\n", n)
		return nil
	},
}

func init() {
	loadCmd.Flags().Uint("db", uint(ups.DefaultDatabaseName), "database name")
	loadCmd.Flags().Bool("dups", false, "create the database with duplicate keys and append duplicates")
	loadCmd.Flags().Bool("hex", false, "keys and records are hex encoded")
	loadCmd.Flags().String("input", "", "input file (default stdin)")
}

func openOrCreateDatabase(env *ups.Environment, name uint16, dups bool) (*ups.Database, error) {
	db, err := env.OpenDatabase(name, 0)
	if ups.Code(err) != ups.ErrDatabaseNotFound {
		return db, err
	}
	var flags uint32
	if dups {
		flags = ups.EnableDuplicateKeys
	}
	return env.CreateDatabase(name, flags)
}

func decodeField(s []byte, useHex bool) ([]byte, error) {
	if !useHex {
		return bytes.Clone(s), nil
	}
	out := make([]byte, hex.DecodedLen(len(s)))
	if _, err := hex.Decode(out, s); err != nil {
		return nil, err
	}
	return out, nil
}

// load inserts every line of in. Nothing is written unless all lines are
// inserted.
func load(env *ups.Environment, db *ups.Database, in io.Reader, dups, useHex bool) (int, error) {
	flags := ups.Overwrite
	if dups {
		flags = ups.Duplicate
	}
	n := 0
	err := env.Update(func(txn *ups.Transaction) error {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
		line := 0
		for sc.Scan() {
			line++
			text := sc.Bytes()
			if len(text) == 0 {
				continue
			}
			k, r, ok := bytes.Cut(text, []byte{'\t'})
			if !ok {
				return fmt.Errorf("line %d: missing tab separator", line)
			}
			key, err := decodeField(k, useHex)
			if err != nil {
				return fmt.Errorf("line %d: key: %w", line, err)
			}
			rec, err := decodeField(r, useHex)
			if err != nil {
				return fmt.Errorf("line %d: record: %w", line, err)
			}
			if err := db.Insert(txn, key, rec, flags); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			n++
		}
		return sc.Err()
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
