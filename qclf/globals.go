package internal

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config lookup paths and the CLI name
	DefaultAppName        = "qclf"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultGlobalConfig   = filepath.Join(DefaultConfigPath, "config.yaml")
	DefaultVocabPath      = filepath.Join(DefaultConfigPath, "vocab.txt")
	DefaultModelPath      = filepath.Join(DefaultConfigPath, "encoder.onnx")
	DefaultLogLevel       = "info"
	DefaultTokenizer      = "wordpiece"
	DefaultEncoder        = "hash"
	DefaultUnknownPolicy  = "unk"
	DefaultHiddenSize     = 768
	DefaultEncoderLayers  = 12
	DefaultLSTMHidden     = 256
	DefaultLSTMLayers     = 1
	DefaultNumLabels      = 2
	DefaultPooling        = "last"
	DefaultSyntaxDim      = 32
	DefaultEncodeWorkers  = 1
	DefaultEncoderBatch   = 32
	DefaultModelSeed      = int64(42)
	DefaultMaxWordPieceIn = 100
)

// Reserved BERT special tokens. The pad token doubles as the placeholder for
// ignorable words so they still occupy one alignment slot.
const (
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	PadToken  = "[PAD]"
	UnkToken  = "[UNK]"
	MaskToken = "[MASK]"

	// PadID is the id used when right-padding batches
	PadID int64 = 0
	// PadLabel is the label id excluded from the loss
	PadLabel int64 = 0
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// GetLoggerWithLevel returns a stderr logger filtered at the named level.
// Unknown level names fall back to info.
func GetLoggerWithLevel(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return GetLogger().Level(lvl)
}
