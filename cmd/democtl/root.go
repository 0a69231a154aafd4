package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/config"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/server"
	"github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
)

// cli holds state shared by subcommands.
type cli struct {
	out      io.Writer
	cfg      *config.Config
	registry string
	output   string
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "democtl",
		Short: "Subsights demo orchestrator CLI",
		Long: `democtl inspects registered demo targets, probes whether they can be
embedded, and reads or clears recorded orchestration events.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
				cfg = config.Default()
			}
			if c.registry != "" {
				cfg.Registry.Path = c.registry
			}
			c.cfg = cfg
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.registry, "registry", "", "target registry file (default: $REGISTRY_PATH)")
	root.PersistentFlags().StringVar(&c.output, "output", "table", "output format: table, json")

	root.AddCommand(c.targetsCmd(), c.probeCmd(), c.eventsCmd())
	return root
}

func (c *cli) loadRegistry() (*target.MemoryRegistry, error) {
	reg, err := target.LoadFile(c.cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func (c *cli) openStore(ctx context.Context) (*telemetry.Store, func(), error) {
	log, err := server.OpenEventLog(ctx, c.cfg.Telemetry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event log: %w", err)
	}
	store := telemetry.NewStore(log,
		telemetry.WithKey(c.cfg.Telemetry.Key),
		telemetry.WithCapacity(c.cfg.Telemetry.Capacity),
	)
	return store, func() {
		store.Close()
		_ = log.Close()
	}, nil
}

func (c *cli) json(v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(data))
	return err
}

func (c *cli) table(headers []string, rows [][]string) error {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	writeRow(w, headers)
	for _, row := range rows {
		writeRow(w, row)
	}
	return w.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, col := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
}
