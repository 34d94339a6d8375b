package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

func newSchemaCommand() *cobra.Command {
	var explain string

	cmd := &cobra.Command{
		Use:   "schema [record-spec]",
		Short: "List registered record specs, or the columns of one",
		Long: `Without arguments, schema lists every registered record spec. With a record
spec it prints that spec's columns, marking index columns.

--explain reports the type a field resolves to and why, e.g.
  jvparquet schema SE --explain Umaban
  jvparquet schema --explain HonRuikei_1__ChakuKaisu_3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := schema.Default()
			var spec schema.RecordSpec
			if len(args) == 1 {
				var err error
				if spec, err = schema.ParseRecordSpec(strings.ToUpper(args[0])); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			switch {
			case explain != "":
				explainField(tw, reg, spec, explain)
				return nil
			case spec != "":
				return printEntry(tw, reg, spec)
			default:
				for _, s := range reg.Specs() {
					entry, _ := reg.Lookup(s)
					fmt.Fprintf(tw, "%s\t%s\t%d columns\n", s, entry.Title(), entry.Len())
				}
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&explain, "explain", "", "Field name whose resolved type to explain")
	return cmd
}

func explainField(tw *tabwriter.Writer, reg *schema.Registry, spec schema.RecordSpec, field string) {
	if spec != "" {
		if typ, ok := reg.RegisteredType(spec, field); ok {
			fmt.Fprintf(tw, "%s\t%s\tregistered in %s\n", field, typ, spec)
			return
		}
	}
	typ, rule := schema.ExplainType(field)
	fmt.Fprintf(tw, "%s\t%s\tinferred (%s)\n", field, typ, rule)
}

func printEntry(tw *tabwriter.Writer, reg *schema.Registry, spec schema.RecordSpec) error {
	entry, ok := reg.Lookup(spec)
	if !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "record spec %s is not registered", spec)
	}

	index := make(map[string]bool)
	for _, name := range entry.IndexColumns() {
		index[name] = true
	}
	fmt.Fprintf(tw, "# %s %s\n", spec, entry.Title())
	for _, f := range entry.Fields() {
		mark := ""
		if index[f.Name] {
			mark = "index"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.Type, mark)
	}
	return nil
}
