package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maxpert/amqp-wire/protocol"
)

func newMethodsCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List the AMQP 0-9-1 methods and their arguments",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMETHOD\tFLAGS\tARGUMENTS")
			for _, def := range protocol.Methods() {
				if class != "" && !strings.EqualFold(class, strings.SplitN(def.Name, ".", 2)[0]) {
					continue
				}
				args := make([]string, len(def.Fields))
				for i, f := range def.Fields {
					args[i] = f.Name + ":" + f.Type.String()
				}
				fmt.Fprintf(tw, "%d.%d\t%s\t%s\t%s\n", def.ClassID, def.MethodID, def.Name, methodFlags(def), strings.Join(args, " "))
			}
			return tw.Flush()
		},
		Example: "# amqp-wire methods --class basic",
	}
	cmd.Flags().StringVar(&class, "class", "", "Only list methods of this class")
	return cmd
}

func methodFlags(def *protocol.MethodDef) string {
	var flags []string
	if def.Synchronous {
		flags = append(flags, "sync")
	}
	if def.HasContent {
		flags = append(flags, "content")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}
