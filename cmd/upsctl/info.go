package main

import (
	"fmt"
	"io"
	"time"

	"github.com/cruppstahl/ups"
	"github.com/cruppstahl/ups/internal/logging"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Print environment parameters and per-database statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		start := time.Now()
		defer func() { logging.Command("info", args[0], time.Since(start), err) }()

		env, err := openEnv(args[0], ups.ReadOnly, false)
		if err != nil {
			return err
		}
		defer env.Close()
		return printInfo(cmd.OutOrStdout(), env)
	},
}

var keyTypeNames = map[uint64]string{
	uint64(ups.TypeBinary): "binary",
	uint64(ups.TypeCustom): "custom",
	uint64(ups.TypeUint8):  "uint8",
	uint64(ups.TypeUint16): "uint16",
	uint64(ups.TypeUint32): "uint32",
	uint64(ups.TypeUint64): "uint64",
	uint64(ups.TypeReal32): "real32",
	uint64(ups.TypeReal64): "real64",
}

func sizeString(v, unlimited uint64) string {
	if v == unlimited {
		return "unlimited"
	}
	return fmt.Sprint(v)
}

func printInfo(w io.Writer, env *ups.Environment) error {
	params, err := env.Parameters(ups.ParamPageSize, ups.ParamCacheSize,
		ups.ParamMaxDatabases, ups.ParamFlags, ups.ParamFileMode)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "environment\n")
	fmt.Fprintf(w, "    page size:     %d\n", params[0].Value)
	fmt.Fprintf(w, "    cache size:    %d\n", params[1].Value)
	fmt.Fprintf(w, "    max databases: %d\n", params[2].Value)
	fmt.Fprintf(w, "    flags:         0x%x\n", params[3].Value)
	fmt.Fprintf(w, "    file mode:     %o\n", params[4].Value)

	names, err := env.DatabaseNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := printDatabase(w, env, name); err != nil {
			return fmt.Errorf("database %d: %w", name, err)
		}
	}
	return nil
}

func printDatabase(w io.Writer, env *ups.Environment, name uint16) error {
	db, err := env.OpenDatabase(name, ups.ReadOnly)
	if err != nil {
		return err
	}
	defer db.Close()

	params, err := db.Parameters(ups.ParamFlags, ups.ParamKeyType, ups.ParamKeySize, ups.ParamRecordSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\ndatabase %d\n", name)
	fmt.Fprintf(w, "    flags:       0x%x\n", params[0].Value)
	fmt.Fprintf(w, "    key type:    %s\n", keyTypeNames[params[1].Value])
	fmt.Fprintf(w, "    key size:    %s\n", sizeString(params[2].Value, uint64(ups.KeySizeUnlimited)))
	fmt.Fprintf(w, "    record size: %s\n", sizeString(params[3].Value, uint64(ups.RecordSizeUnlimited)))

	if params[1].Value == uint64(ups.TypeCustom) {
		fmt.Fprintf(w, "    (custom key order, not counted)\n")
		return nil
	}
	keys, err := db.Count(nil, true)
	if err != nil {
		return err
	}
	records, err := db.Count(nil, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "    keys:        %d\n", keys)
	fmt.Fprintf(w, "    records:     %d\n", records)
	return nil
}
