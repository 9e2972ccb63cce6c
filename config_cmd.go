package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# style name or JSON path for glossary definitions (default "auto")
style: "auto"
# mouse support: click a paragraph to hear it
mouse: false
# word-wrap at width (0 fits the terminal)
width: 0

# Reading modes used the first time a book is opened. Afterwards the modes
# you pick while reading are remembered per book.
lang: ""
speed: 1.0
easy-read: false
describe-images: false
autoplay: false

# Resource cache for books read over http(s)
cache:
  # directory, empty uses the user cache dir
  dir: ""
  memory_mb: 64
  disk_mb: 512
  # zstd level, 0 disables compression
  compression: 3
  max_age: "720h"

# Remote books
http:
  requests_per_minute: 120
  timeout: "30s"

# Clips fetched ahead of the one playing
queue:
  lookahead: 3
  workers: 2
  memory_mb: 32

# Audio device
audio:
  sample_rate: 44100
  buffer_size: 8192

# Prometheus metrics, e.g. "localhost:9464"; empty disables
metrics:
  addr: ""

# Publish playback events over NATS so other highlighters can follow along
bus:
  # comma separated server urls; empty disables
  url: ""
  subject: "readalong"
  # run an in-process server instead of connecting to one
  embedded: false
  port: 4222
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the readalong config file",
	Long:    paragraph(fmt.Sprintf("\n%s the readalong config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("readalong config\nreadalong config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Read Along", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
