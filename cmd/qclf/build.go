package main

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/question-classifier/qclf/align"
	"github.com/ZanzyTHEbar/question-classifier/qclf/classifier"
	"github.com/ZanzyTHEbar/question-classifier/qclf/config"
	"github.com/ZanzyTHEbar/question-classifier/qclf/embedding"
	"github.com/ZanzyTHEbar/question-classifier/qclf/embedding/tokenizer"
)

func buildAligner(cfg *config.Config) (*align.Aligner, error) {
	tok, err := tokenizer.New(tokenizer.Config{
		Backend:   cfg.Tokenizer.Backend,
		VocabPath: cfg.Tokenizer.VocabPath,
		LowerCase: cfg.Tokenizer.LowerCase,
	})
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	policy, err := align.ParseUnknownPolicy(strings.ToLower(cfg.Tokenizer.UnknownPolicy))
	if err != nil {
		return nil, err
	}
	return align.New(tok,
		align.WithUnknownPolicy(policy),
		align.WithWorkers(cfg.Batch.Workers),
		align.WithLogger(logger.With().Str("component", "align").Logger()),
		align.WithMetrics(collector),
	)
}

func buildModel(cfg *config.Config) (*classifier.Model, error) {
	a, err := buildAligner(cfg)
	if err != nil {
		return nil, err
	}
	enc, err := embedding.New(embedding.Options{
		Provider:          cfg.Encoder.Provider,
		ModelPath:         cfg.Encoder.ModelPath,
		HiddenSize:        cfg.Encoder.HiddenSize,
		NumLayers:         cfg.Encoder.NumLayers,
		ExecutionProvider: cfg.Encoder.ExecutionProvider,
		BatchSize:         cfg.Encoder.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("load encoder: %w", err)
	}
	pooling, err := classifier.ParsePooling(cfg.Model.Pooling)
	if err != nil {
		return nil, err
	}
	return classifier.NewModel(classifier.Config{
		HiddenDim:     cfg.Model.HiddenDim,
		LSTMLayers:    cfg.Model.LSTMLayers,
		Bidirectional: cfg.Model.Bidirectional,
		NumLabels:     cfg.Model.NumLabels,
		Pooling:       pooling,
		UseSyntax:     cfg.Model.UseSyntax,
		SyntaxVocab:   cfg.Model.SyntaxVocab,
		SyntaxDim:     cfg.Model.SyntaxDim,
		Seed:          cfg.Model.Seed,
		AverageLoss:   cfg.Loss.Average,
	}, a, enc,
		classifier.WithLogger(logger.With().Str("component", "classifier").Logger()),
		classifier.WithMetrics(collector),
	)
}
