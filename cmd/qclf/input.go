package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// readSequences reads one word sequence per line, words separated by
// whitespace. A path of "-" or no path reads stdin.
func readSequences(path string, stdin io.Reader) ([][]string, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	if r == nil {
		return nil, fmt.Errorf("no input for %q", path)
	}

	var out [][]string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		out = append(out, strings.Fields(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return out, nil
}
