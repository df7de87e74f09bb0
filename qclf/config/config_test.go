package config

import (
	"os"
	"path/filepath"
	"testing"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	tempDir, err := os.MkdirTemp("", "qclf-config-test-*")
	require.NoError(suite.T(), err)
	suite.tempDir = tempDir

	err = os.Chdir(tempDir)
	require.NoError(suite.T(), err)
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func (suite *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), internal.DefaultVocabPath, cfg.Tokenizer.VocabPath)
	assert.Equal(suite.T(), "wordpiece", cfg.Tokenizer.Backend)
	assert.Equal(suite.T(), "unk", cfg.Tokenizer.UnknownPolicy)
	assert.False(suite.T(), cfg.Tokenizer.LowerCase)
	assert.Equal(suite.T(), "hash", cfg.Encoder.Provider)
	assert.Equal(suite.T(), internal.DefaultHiddenSize, cfg.Encoder.HiddenSize)
	assert.Equal(suite.T(), internal.DefaultLSTMHidden, cfg.Model.HiddenDim)
	assert.True(suite.T(), cfg.Model.Bidirectional)
	assert.Equal(suite.T(), "last", cfg.Model.Pooling)
	assert.False(suite.T(), cfg.Loss.Average)
	assert.Equal(suite.T(), 1, cfg.Batch.Workers)
	assert.Equal(suite.T(), "info", cfg.Log.Level)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configFile := suite.writeConfig(`
tokenizer:
  vocabPath: "./vocab.txt"
  backend: "sugarme"
  unknownPolicy: "error"
encoder:
  provider: "onnx"
  modelPath: "./bert.onnx"
  hiddenSize: 312
  numLayers: 4
model:
  hiddenDim: 64
  lstmLayers: 2
  bidirectional: false
  numLabels: 6
  pooling: "max"
  useSyntax: true
  syntaxVocab: 20
  syntaxDim: 8
loss:
  average: true
batch:
  workers: 4
log:
  level: "debug"
`)

	cfg, err := LoadConfig(configFile)

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), "./vocab.txt", cfg.Tokenizer.VocabPath)
	assert.Equal(suite.T(), "sugarme", cfg.Tokenizer.Backend)
	assert.Equal(suite.T(), "error", cfg.Tokenizer.UnknownPolicy)
	assert.Equal(suite.T(), "onnx", cfg.Encoder.Provider)
	assert.Equal(suite.T(), 312, cfg.Encoder.HiddenSize)
	assert.Equal(suite.T(), 4, cfg.Encoder.NumLayers)
	assert.Equal(suite.T(), 64, cfg.Model.HiddenDim)
	assert.Equal(suite.T(), 2, cfg.Model.LSTMLayers)
	assert.False(suite.T(), cfg.Model.Bidirectional)
	assert.Equal(suite.T(), 6, cfg.Model.NumLabels)
	assert.Equal(suite.T(), "max", cfg.Model.Pooling)
	assert.True(suite.T(), cfg.Model.UseSyntax)
	assert.True(suite.T(), cfg.Loss.Average)
	assert.Equal(suite.T(), 4, cfg.Batch.Workers)
	assert.Equal(suite.T(), "debug", cfg.Log.Level)
}

func (suite *ConfigTestSuite) TestLoadConfigResultsAreIndependent() {
	fromFile, err := LoadConfig(suite.writeConfig("model:\n  numLabels: 6\n"))
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), os.Remove(filepath.Join(suite.tempDir, "config.yaml")))

	defaults, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 6, fromFile.Model.NumLabels)
	assert.NotEqual(suite.T(), fromFile.Model.NumLabels, defaults.Model.NumLabels)
	defaults.Model.NumLabels = 42
	assert.Equal(suite.T(), 6, fromFile.Model.NumLabels)
}

func (suite *ConfigTestSuite) TestLoadConfigFromEnvironment() {
	suite.T().Setenv("LOSS_AVERAGE", "true")
	suite.T().Setenv("MODEL_NUMLABELS", "9")

	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	assert.True(suite.T(), cfg.Loss.Average)
	assert.Equal(suite.T(), 9, cfg.Model.NumLabels)
}

func (suite *ConfigTestSuite) TestLoadConfigRejectsInvalidValues() {
	cases := map[string]string{
		"backend":  "tokenizer:\n  backend: \"bpe\"\n",
		"policy":   "tokenizer:\n  unknownPolicy: \"drop\"\n",
		"pooling":  "model:\n  pooling: \"mean\"\n",
		"labels":   "model:\n  numLabels: 0\n",
		"syntax":   "model:\n  useSyntax: true\n  syntaxVocab: 0\n",
		"encoderH": "encoder:\n  hiddenSize: -1\n",
	}
	for name, content := range cases {
		suite.Run(name, func() {
			_, err := LoadConfig(suite.writeConfig(content))
			assert.Error(suite.T(), err)
		})
	}
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	_, err := LoadConfig(suite.writeConfig("tokenizer: [unterminated"))
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "failed to read config file")
}
