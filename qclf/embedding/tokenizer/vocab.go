package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"

	"github.com/armon/go-radix"
)

// ErrUnknownToken is returned when a token has no id in the vocabulary.
var ErrUnknownToken = errors.New("token not in vocabulary")

// Vocab maps subword strings to ids. Line order in vocab.txt defines the id.
// A Vocab is read-only once built and safe to share.
type Vocab struct {
	tokens []string
	ids    map[string]int64
	tree   *radix.Tree // token -> id, for longest-prefix matching
}

// NewVocab builds a vocabulary where tokens[i] has id i. Empty entries keep
// their slot but cannot be looked up.
func NewVocab(tokens []string) *Vocab {
	v := &Vocab{
		tokens: make([]string, len(tokens)),
		ids:    make(map[string]int64, len(tokens)),
		tree:   radix.New(),
	}
	copy(v.tokens, tokens)
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, dup := v.ids[tok]; dup {
			continue // first occurrence wins
		}
		v.ids[tok] = int64(i)
		v.tree.Insert(tok, int64(i))
	}
	return v
}

// LoadVocab reads a vocab.txt file (one token per line). path may also be a
// directory containing vocab.txt.
func LoadVocab(path string) (*Vocab, error) {
	file, err := resolveVocabFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open vocab %s: %w", file, err)
	}
	defer f.Close()
	return ReadVocab(f)
}

// ReadVocab reads one token per line from r.
func ReadVocab(r io.Reader) (*Vocab, error) {
	tokens := make([]string, 0, 32000)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewVocab(tokens), nil
}

func resolveVocabFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: vocab path is required", ErrUnsupported)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat vocab %s: %w", path, err)
	}
	if fi.IsDir() {
		return filepath.Join(path, "vocab.txt"), nil
	}
	return path, nil
}

// Size returns the number of id slots.
func (v *Vocab) Size() int { return len(v.tokens) }

// ID looks up a single token.
func (v *Vocab) ID(token string) (int64, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Token returns the string for id, or "" when out of range.
func (v *Vocab) Token(id int64) string {
	if id < 0 || int(id) >= len(v.tokens) {
		return ""
	}
	return v.tokens[id]
}

// UnkID returns the id of [UNK] if the vocabulary has one.
func (v *Vocab) UnkID() (int64, bool) { return v.ID(internal.UnkToken) }

// ConvertTokensToIDs maps tokens to ids, substituting [UNK] for misses. It
// fails with ErrUnknownToken only when the vocabulary has no [UNK] entry.
func (v *Vocab) ConvertTokensToIDs(tokens []string) ([]int64, error) {
	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		id, ok := v.ids[tok]
		if !ok {
			unk, hasUnk := v.UnkID()
			if !hasUnk {
				return nil, fmt.Errorf("%w: %q", ErrUnknownToken, tok)
			}
			id = unk
		}
		ids[i] = id
	}
	return ids, nil
}

// ConvertIDsToTokens is the inverse of ConvertTokensToIDs.
func (v *Vocab) ConvertIDsToTokens(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = v.Token(id)
	}
	return out
}

// RequireTokens returns an error naming every token missing from the vocabulary.
func (v *Vocab) RequireTokens(tokens ...string) error {
	var missing []string
	for _, t := range tokens {
		if _, ok := v.ids[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrUnknownToken, strings.Join(missing, ", "))
	}
	return nil
}

// longestPiece returns the longest vocabulary entry that is a prefix of s
// and strictly longer than minLen bytes.
func (v *Vocab) longestPiece(s string, minLen int) string {
	best := ""
	v.tree.WalkPath(s, func(key string, _ interface{}) bool {
		if len(key) > minLen {
			best = key
		}
		return false
	})
	return best
}
