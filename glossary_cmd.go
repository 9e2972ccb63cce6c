package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readalong/internal/glossary"
)

var (
	glossaryLimit int

	glossaryCmd = &cobra.Command{
		Use:     "glossary BOOK [QUERY]",
		Short:   "Look up glossary terms",
		Long:    paragraph(fmt.Sprintf("\n%s a book's glossary. Terms are fuzzy matched, best match first.", keyword("Search"))),
		Example: paragraph("readalong glossary ./biology photo\nreadalong glossary --lang es ./biology"),
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := bookArg(args[:1])
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

			lang, _ := cmd.Flags().GetString("lang")
			if lang == "" {
				lang = viper.GetString("lang")
			}
			if !b.Manifest.HasLanguage(lang) {
				lang = b.Manifest.DefaultLanguage
			}
			l, err := b.Language(ctx, lang)
			if err != nil {
				return err
			}
			if l.Glossary == nil || l.Glossary.Len() == 0 {
				return fmt.Errorf("no glossary for %s", lang)
			}

			query := ""
			if len(args) > 1 {
				query = args[1]
			}
			entries := l.Glossary.Search(query)
			if len(entries) == 0 {
				return fmt.Errorf("no terms match %q", query)
			}
			if glossaryLimit > 0 && len(entries) > glossaryLimit {
				entries = entries[:glossaryLimit]
			}

			var out strings.Builder
			for _, e := range entries {
				s, err := glossary.Render(e, style, int(width)) //nolint:gosec
				if err != nil {
					return err
				}
				out.WriteString(s)
			}
			fmt.Fprint(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
)

func init() {
	glossaryCmd.Flags().String("lang", "", "glossary language")
	glossaryCmd.Flags().IntVarP(&glossaryLimit, "limit", "n", 5, "show at most this many terms (0 for all)")
}
