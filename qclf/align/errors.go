package align

import (
	"errors"

	"github.com/ZanzyTHEbar/question-classifier/qclf/embedding/tokenizer"
)

var (
	// ErrUnknownToken is returned when a subword has no vocabulary id and the
	// aligner is not allowed to substitute [UNK].
	ErrUnknownToken = tokenizer.ErrUnknownToken
	// ErrLengthMismatch is returned when a mask disagrees with its id row.
	ErrLengthMismatch = errors.New("mask length does not match ids length")
	// ErrEmptyBatch is returned for a batch with no examples.
	ErrEmptyBatch = errors.New("batch has no examples")
)
