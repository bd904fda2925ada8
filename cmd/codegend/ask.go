package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"codegend/internal/config"
	"codegend/internal/langdetect"
	"codegend/internal/llm"
)

var askNoStream bool

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send one prompt to the model and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		client := llm.NewClient(llm.Config{
			Host:           cfg.OllamaHost,
			ConnectTimeout: config.Seconds(cfg.ConnectTimeoutSec),
			ReadTimeout:    config.Seconds(cfg.ReadTimeoutSec),
		})
		req := llm.Request{Model: cfg.Model, Prompt: strings.Join(args, " ")}
		out := cmd.OutOrStdout()

		var text string
		if askNoStream {
			text, err = client.Complete(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
		} else {
			text, err = streamTo(cmd, client, req, out)
			if err != nil {
				return err
			}
		}
		lang := langdetect.Classify(text)
		fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s]\n", lang.Name)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "Wait for the whole answer instead of streaming tokens")
}

func streamTo(cmd *cobra.Command, client *llm.Client, req llm.Request, out io.Writer) (string, error) {
	ts, err := client.Stream(cmd.Context(), req, nil)
	if err != nil {
		return "", err
	}
	defer ts.Close()
	var b strings.Builder
	for {
		tok, err := ts.Next()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(tok)
		fmt.Fprint(out, tok)
	}
}
