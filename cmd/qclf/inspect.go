package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"
	"github.com/ZanzyTHEbar/question-classifier/qclf/embedding"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show vocabulary, encoder and model settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			a, err := buildAligner(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			v := a.Vocab()
			fmt.Fprintf(w, "vocab:      %s (%d tokens, backend %s)\n", cfg.Tokenizer.VocabPath, v.Size(), cfg.Tokenizer.Backend)
			for _, tok := range []string{internal.PadToken, internal.UnkToken, internal.ClsToken, internal.SepToken, internal.MaskToken} {
				if id, ok := v.ID(tok); ok {
					fmt.Fprintf(w, "  %-7s %d\n", tok, id)
				} else {
					fmt.Fprintf(w, "  %-7s missing\n", tok)
				}
			}
			fmt.Fprintf(w, "encoder:    %s hidden=%d layers=%d\n", cfg.Encoder.Provider, cfg.Encoder.HiddenSize, cfg.Encoder.NumLayers)
			if providers, err := embedding.ListONNXProviders(); err == nil {
				fmt.Fprintf(w, "onnx:       %s\n", strings.Join(providers, ", "))
			} else {
				fmt.Fprintf(w, "onnx:       %v\n", err)
			}
			fmt.Fprintf(w, "lstm:       hidden=%d layers=%d bidirectional=%t\n", cfg.Model.HiddenDim, cfg.Model.LSTMLayers, cfg.Model.Bidirectional)
			fmt.Fprintf(w, "head:       labels=%d pooling=%s syntax=%t\n", cfg.Model.NumLabels, cfg.Model.Pooling, cfg.Model.UseSyntax)
			fmt.Fprintf(w, "loss:       average=%t\n", cfg.Loss.Average)
			return nil
		},
	}
}
