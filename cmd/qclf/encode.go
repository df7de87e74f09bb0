package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

type encodedExample struct {
	Words         []string `json:"words"`
	Subwords      []string `json:"subwords"`
	IDs           []int64  `json:"input_ids"`
	AttentionMask []int64  `json:"attention_mask"`
	BoundaryMask  []int64  `json:"boundary_mask"`
	Starts        []uint32 `json:"word_starts"`
}

func newEncodeCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode word sequences into padded subword ids and masks (JSON lines)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			seqs, err := readSequences(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := buildAligner(cfg)
			if err != nil {
				return err
			}
			batch, err := a.EncodeBatch(cmd.Context(), seqs)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for i, words := range seqs {
				if err := enc.Encode(encodedExample{
					Words:         words,
					Subwords:      a.Vocab().ConvertIDsToTokens(batch.IDs[i]),
					IDs:           batch.IDs[i],
					AttentionMask: batch.AttentionMask[i],
					BoundaryMask:  batch.BoundaryMask[i],
					Starts:        batch.Starts[i].ToArray(),
				}); err != nil {
					return err
				}
			}
			logger.Info().Str("batch_id", batch.ID).Int("examples", batch.Size()).Msg("encoded")
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "File with one whitespace-separated sentence per line")

	return cmd
}
