package main

import (
	"fmt"
	"strings"

	"github.com/alanensastegui/subsights-demo/backend/internal/providers/probe"
	"github.com/spf13/cobra"
)

func (c *cli) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <slug>",
		Short: "Check whether a target is likely embeddable",
		Long:  "Fetch the target's base address and inspect X-Frame-Options and CSP frame-ancestors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.loadRegistry()
			if err != nil {
				return err
			}
			t, err := reg.Lookup(args[0])
			if err != nil {
				return err
			}

			prober := probe.New(probe.Options{
				Timeout:        c.cfg.Probe.Timeout,
				EmbedderOrigin: strings.TrimRight(c.cfg.Probe.EmbedderOrigin, "/"),
			})
			result := prober.Probe(cmd.Context(), t)

			if c.output == "json" {
				return c.json(result)
			}
			if !t.AllowEmbedding {
				warnColor.Fprintf(c.out, "⚠ %s does not allow embedding; views skip straight to default\n", t.Slug)
			}
			if result.Allowed {
				successColor.Fprintf(c.out, "✓ %s is likely embeddable\n", t.Slug)
			} else {
				warnColor.Fprintf(c.out, "⚠ %s is likely blocked\n", t.Slug)
			}
			fmt.Fprintf(c.out, "  %s (%dms)\n", result.Summary(), result.Detail.DurationMs)
			return nil
		},
	}
}
