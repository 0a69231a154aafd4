package main

import (
	"strconv"

	"github.com/alanensastegui/subsights-demo/backend/internal/providers/origin"
	"github.com/spf13/cobra"
)

func (c *cli) targetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "targets",
		Aliases: []string{"ls"},
		Short:   "List registered demo targets",
		Long:    "List the targets in the registry and whether their widget snippet is well formed",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.loadRegistry()
			if err != nil {
				return err
			}
			targets := reg.List()

			if c.output == "json" {
				out := make([]map[string]interface{}, 0, len(targets))
				for _, t := range targets {
					out = append(out, map[string]interface{}{
						"slug":           t.Slug,
						"label":          t.DisplayLabel(),
						"url":            t.BaseURL,
						"allowEmbedding": t.AllowEmbedding,
						"snippetValid":   origin.ValidateSnippet(t.Embed) == nil,
					})
				}
				return c.json(out)
			}

			if len(targets) == 0 {
				warnColor.Fprintln(c.out, "No targets registered")
				return nil
			}
			rows := make([][]string, 0, len(targets))
			for _, t := range targets {
				snippet := "ok"
				if err := origin.ValidateSnippet(t.Embed); err != nil {
					snippet = "malformed"
				}
				rows = append(rows, []string{t.Slug, t.DisplayLabel(), t.BaseURL, strconv.FormatBool(t.AllowEmbedding), snippet})
			}
			return c.table([]string{"SLUG", "LABEL", "URL", "EMBED", "SNIPPET"}, rows)
		},
	}
}
