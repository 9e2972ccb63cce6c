package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readalong/internal/bus"
)

var followCmd = &cobra.Command{
	Use:     "follow",
	Short:   "Print playback events published by readers",
	Long:    paragraph(fmt.Sprintf("\n%s the playback events other readers publish to %s.", keyword("Follow"), "bus.url")),
	Example: paragraph("READALONG_BUS_URL=nats://localhost:4222 readalong follow"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := busConfig()
		if cfg.URL == "" {
			return errors.New("set bus.url in the config file to follow readers")
		}
		conn, err := nats.Connect(cfg.URL, nats.Name("readalong-follow"), nats.Timeout(cfg.Timeout))
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer conn.Close()

		out := cmd.OutOrStdout()
		stop, err := bus.Follow(conn, cfg.Subject, func(m bus.Message) {
			fmt.Fprintln(out, followLine(m))
		})
		if err != nil {
			return err
		}
		defer stop()

		ctx, cancel := signal.NotifyContext(contextOf(cmd), os.Interrupt)
		defer cancel()
		<-ctx.Done()
		return nil
	},
}

func followLine(m bus.Message) string {
	line := fmt.Sprintf("%s %s %s #%d", subtle(m.Time.Local().Format("15:04:05")), subtle(shortID(m.Session)), keyword(m.Type), m.Index)
	if m.Unit != "" {
		line += " " + m.Unit
	}
	if m.Highlighted != "" && m.Highlighted != m.Unit {
		line += " " + subtle("["+m.Highlighted+"]")
	}
	if m.Error != "" {
		line += " " + warning(m.Error)
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
