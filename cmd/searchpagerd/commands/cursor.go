package commands

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alp4ka/searchpager"
)

// NewCursorCommand groups cursor token helpers, handy when debugging page
// links by hand.
func NewCursorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Encode and decode pagination cursor tokens",
	}

	cmd.AddCommand(newCursorDecodeCommand(), newCursorEncodeCommand())

	return cmd
}

type cursorView struct {
	Values    []any  `json:"values"`
	Traversal string `json:"traversal"`
}

func newCursorDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [token]",
		Short: "Print the sort tuple and traversal of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cursor, err := searchpager.DecodeCursor(args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(cursorView{Values: cursor.Values(), Traversal: cursor.Traversal().String()})
		},
	}
}

func newCursorEncodeCommand() *cobra.Command {
	var backward bool

	cmd := &cobra.Command{
		Use:   "encode [json array]",
		Short: `Build a token from a sort tuple, e.g. '[1700000000, "a1"]'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dec := json.NewDecoder(bytes.NewReader([]byte(args[0])))
			dec.UseNumber()

			var values []any
			if err := dec.Decode(&values); err != nil {
				return fmt.Errorf("sort tuple must be a JSON array: %w", err)
			}

			t := searchpager.Forward
			if backward {
				t = searchpager.Backward
			}

			token, err := searchpager.EncodeCursor(values, t)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().BoolVarP(&backward, "backward", "b", false, "walk toward previous pages")

	return cmd
}
