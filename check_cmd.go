package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readalong/internal/reader"
)

var (
	checkStrict bool

	checkCmd = &cobra.Command{
		Use:   "check [BOOK]",
		Short: "Report units that will not be read or highlighted",
		Long: paragraph(fmt.Sprintf("\n%s every page in every language for elements without audio, "+
			"clips without word timings and easy-read text read with standard timings.", keyword("Check"))),
		Example: paragraph("readalong check ./biology\nreadalong check --strict https://books.example.com/biology"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := bookArg(args)
			if err != nil {
				return err
			}
			ctx := contextOf(cmd)
			b, c, err := openBundle(ctx, loc)
			if err != nil {
				return err
			}
			if c != nil {
				defer c.Close() //nolint:errcheck
			}

			r, err := reader.Check(ctx, b)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), checkView(b.Manifest.Title, r))
			if checkStrict && len(r.Issues) > 0 {
				return errors.New("book has issues")
			}
			return nil
		},
	}
)

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "exit with an error when issues are found")
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func checkView(title string, r reader.Report) string {
	var b strings.Builder
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "\n  %s\n", heading(title))
	fmt.Fprintf(&b, "  %s\n\n", subtle(fmt.Sprintf("%d pages · %d languages · %d units", r.Pages, r.Languages, r.Units)))

	if len(r.Issues) == 0 {
		fmt.Fprintf(&b, "  %s\n\n", keyword("No issues found."))
		return b.String()
	}

	kinds := []reader.IssueKind{reader.IssueNoAudio, reader.IssueNoTimecodes, reader.IssueEasyReadDesync}
	for _, k := range kinds {
		n := r.Count(k)
		if n == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %s %s\n", warning(string(k)), subtle(fmt.Sprintf("(%d)", n)))
		for _, is := range r.Issues {
			if is.Kind != k {
				continue
			}
			fmt.Fprintf(&b, "    %s %s %s\n", strings.ToUpper(is.Lang), subtle(is.Page), is.ID)
		}
		b.WriteString("\n")
	}
	return b.String()
}
