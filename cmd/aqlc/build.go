package main

import (
	"fmt"
	"io"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/birdie-ai/arangoql/xjson"
	"github.com/spf13/cobra"
)

type built struct {
	Query    string     `json:"query"`
	BindVars aql.Params `json:"bindVars"`
}

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [file]",
		Short: "Print the AQL statement of each spec as a JSON line with its query and bindVars",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer func() {
				_ = in.Close()
			}()
			return build(in, cmd.OutOrStdout())
		},
	}
}

func build(r io.Reader, w io.Writer) error {
	dec := xjson.NewDecoder[aql.Spec](r)
	enc := xjson.NewEncoder[built](w)
	for i, spec := range dec.Indexed() {
		st, err := spec.Statement()
		if err != nil {
			return fmt.Errorf("spec %d: %w", i, err)
		}
		if err := enc.Encode(built{Query: st.Query, BindVars: st.BindVars}); err != nil {
			return fmt.Errorf("writing statement %d: %w", i, err)
		}
	}
	if err := dec.Error(); err != nil {
		return fmt.Errorf("reading specs: %w", err)
	}
	return nil
}
