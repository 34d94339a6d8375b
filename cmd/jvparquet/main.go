package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

// envPrefix namespaces every environment override, e.g. JVPARQUET_BATCH_SIZE
const envPrefix = "JVPARQUET"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "jvparquet",
		Short: "jvparquet - JV-Data record to Parquet converter",
		Long: `jvparquet converts decoded JV-Data feed records into typed Parquet segments,
one segment stream per record spec, with batched writes and an explicit flush policy.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jvparquet v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newConvertCommand(newViper()))
	root.AddCommand(newReadCommand())
	root.AddCommand(newSchemaCommand())
	root.AddCommand(newConfigCommand())
	return root
}

// newViper returns a viper instance reading JVPARQUET_* variables, with
// dashes and dots in keys mapped to underscores
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}
