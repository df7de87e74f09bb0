package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/ZanzyTHEbar/question-classifier/qclf/classifier"
)

type wordPrediction struct {
	Words  []string `json:"words"`
	Labels []int64  `json:"labels"`
}

type sequencePrediction struct {
	Words  []string  `json:"words"`
	Label  int64     `json:"label"`
	Scores []float64 `json:"scores"`
}

func newPredictCmd() *cobra.Command {
	var (
		input  string
		labels string
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score sentences per word or per sequence with a freshly seeded model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			seqs, err := readSequences(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			model, err := buildModel(cfg)
			if err != nil {
				return err
			}
			batch, err := model.EncodeBatch(cmd.Context(), seqs)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())

			switch mode {
			case "sequence":
				scores, err := model.Forward(cmd.Context(), batch, nil)
				if err != nil {
					return err
				}
				preds := classifier.Argmax(scores)
				for i, words := range seqs {
					row := mat.Row(nil, i, scores)
					if err := enc.Encode(sequencePrediction{Words: words, Label: preds[i], Scores: row}); err != nil {
						return err
					}
				}
			case "word":
				var preds [][]int64
				if labels != "" {
					gold, err := readLabels(labels)
					if err != nil {
						return err
					}
					res, err := model.Loss(cmd.Context(), batch, gold)
					if err != nil {
						return err
					}
					logger.Info().
						Str("batch_id", batch.ID).
						Float64("loss", res.Loss).
						Int("scored_words", res.Count).
						Msg("loss")
					preds = res.Predictions
				} else if preds, err = model.Predict(cmd.Context(), batch); err != nil {
					return err
				}
				for i, words := range seqs {
					if err := enc.Encode(wordPrediction{Words: words, Labels: preds[i][:len(words)]}); err != nil {
						return err
					}
				}
			default:
				return fmt.Errorf("unknown mode %q: want word or sequence", mode)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "File with one whitespace-separated sentence per line")
	cmd.Flags().StringVar(&labels, "labels", "", "File with one line of integer word labels per sentence; reports the loss")
	cmd.Flags().StringVar(&mode, "mode", "word", "Scoring mode: word or sequence")

	return cmd
}

func readLabels(path string) ([][]int64, error) {
	rows, err := readSequences(path, nil)
	if err != nil {
		return nil, err
	}
	out := make([][]int64, len(rows))
	for i, fields := range rows {
		out[i] = make([]int64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("labels line %d: %w", i+1, err)
			}
			out[i][j] = v
		}
	}
	return out, nil
}
