package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readalong/internal/cache"
)

var (
	cacheClear bool

	cacheCmd = &cobra.Command{
		Use:     "cache",
		Short:   "Show or clear the cache of remote books",
		Example: paragraph("readalong cache\nreadalong cache --clear"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := cache.NewManager(cacheConfig())
			if err != nil {
				return fmt.Errorf("unable to open cache: %w", err)
			}
			defer c.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			if cacheClear {
				before := c.Summary().Disk.Size
				if err := c.Clear(); err != nil {
					return fmt.Errorf("unable to clear cache: %w", err)
				}
				fmt.Fprintf(out, "Cleared %s from %s\n", humanize.IBytes(uint64(before)), c.Summary().Dir) //nolint:gosec
				return nil
			}
			fmt.Fprint(out, cacheView(c.Summary()))
			return nil
		},
	}
)

func init() {
	cacheCmd.Flags().BoolVar(&cacheClear, "clear", false, "remove every cached resource")
}

func cacheView(s cache.Summary) string {
	used := func(st cache.Stats) string {
		return fmt.Sprintf("%s of %s, %s items",
			humanize.IBytes(uint64(st.Size)),     //nolint:gosec
			humanize.IBytes(uint64(st.Capacity)), //nolint:gosec
			humanize.Comma(st.ItemCount))
	}
	last := "never"
	if !s.Disk.LastAccess.IsZero() {
		last = humanize.Time(s.Disk.LastAccess)
	}
	return fmt.Sprintf("\n  %s %s\n\n  %s  %s\n  %s    %s\n  %s  %s\n\n",
		heading("Cache"), subtle(s.Dir),
		keyword("memory"), used(s.Memory),
		keyword("disk"), used(s.Disk),
		keyword("used"), subtle(last),
	)
}
