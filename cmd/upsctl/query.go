package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cruppstahl/ups"
	"github.com/cruppstahl/ups/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var queryCmd = &cobra.Command{
	Use:   "query [file] [query]",
	Short: `Run a select query such as "count($key) from database 1"`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		start := time.Now()
		var n int
		defer func() { logging.Command("query", args[0], time.Since(start), err, "rows", n) }()

		env, err := openEnv(args[0], ups.ReadOnly, false)
		if err != nil {
			return err
		}
		defer env.Close()
		res, err := env.Select(args[1])
		if err != nil {
			return err
		}
		n = res.RowCount()
		return printResult(cmd.OutOrStdout(), res, viper.GetBool("hex"))
	},
}

func init() {
	queryCmd.Flags().Bool("hex", false, "print binary keys and records hex encoded")
}

// formatValue renders one typed field of a result row.
func formatValue(typ uint16, b []byte, useHex bool) string {
	switch {
	case typ == ups.TypeUint8 && len(b) == 1:
		return strconv.FormatUint(uint64(b[0]), 10)
	case typ == ups.TypeUint16 && len(b) == 2:
		return strconv.FormatUint(uint64(binary.NativeEndian.Uint16(b)), 10)
	case typ == ups.TypeUint32 && len(b) == 4:
		return strconv.FormatUint(uint64(binary.NativeEndian.Uint32(b)), 10)
	case typ == ups.TypeUint64 && len(b) == 8:
		return strconv.FormatUint(binary.NativeEndian.Uint64(b), 10)
	case typ == ups.TypeReal32 && len(b) == 4:
		return strconv.FormatFloat(float64(math.Float32frombits(binary.NativeEndian.Uint32(b))), 'g', -1, 32)
	case typ == ups.TypeReal64 && len(b) == 8:
		return strconv.FormatFloat(math.Float64frombits(binary.NativeEndian.Uint64(b)), 'g', -1, 64)
	case useHex:
		return encodeField(b, true)
	}
	// aggregate names carry a terminating NUL
	return strings.TrimSuffix(string(b), "\x00")
}

// printResult writes one key<TAB>record line per row.
func printResult(out io.Writer, res *ups.Result, useHex bool) error {
	w := bufio.NewWriter(out)
	for i := 0; i < res.RowCount(); i++ {
		fmt.Fprintf(w, "%s\t%s\n",
			formatValue(res.KeyType(), res.Key(i), useHex),
			formatValue(res.RecordType(), res.Record(i), useHex))
	}
	return w.Flush()
}
