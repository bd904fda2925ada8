package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"codegend/internal/config"
	"codegend/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models installed in Ollama",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		client := llm.NewClient(llm.Config{Host: cfg.OllamaHost, ConnectTimeout: config.Seconds(cfg.ConnectTimeoutSec)})
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		models, err := client.Tags(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED\t")
		for _, m := range models {
			marker := ""
			if m.Name == cfg.Model {
				marker = " *"
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t\n", m.Name, marker, humanSize(m.Size), m.ModifiedAt)
		}
		return w.Flush()
	},
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
