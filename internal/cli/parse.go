package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"quizdesk/internal/parser"
)

// NewParseCmd previews how a question file is parsed, without saving anything.
func NewParseCmd() *cobra.Command {
	var keepUnanswered bool
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse pasted question blocks and print them as JSON (reads stdin without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runParse(in, cmd.OutOrStdout(), keepUnanswered)
		},
	}
	cmd.Flags().BoolVar(&keepUnanswered, "keep-unanswered", false, "emit questions that have no Answer: line")
	return cmd
}

func runParse(in io.Reader, out io.Writer, keepUnanswered bool) error {
	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var opts []parser.Option
	if keepUnanswered {
		opts = append(opts, parser.WithKeepUnanswered())
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(parser.ParseReport(string(text), opts...))
}
