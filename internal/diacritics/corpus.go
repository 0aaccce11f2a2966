package diacritics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/tidwall/gjson"
)

// Corpus formats accepted by ReadCorpus.
const (
	CorpusAuto  = "auto"
	CorpusText  = "text"
	CorpusJSONL = "jsonl"
)

// ReadCorpus memory-maps path and calls fn once per corpus text: every
// non-empty line for plain text, the "text" field of every line for JSON
// Lines. It returns the number of texts passed to fn.
func ReadCorpus(path, format string, fn func(text string) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat corpus: %w", err)
	}
	if fi.Size() == 0 {
		return 0, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("mmap corpus: %w", err)
	}
	defer func() { _ = data.Unmap() }()

	format, err = resolveCorpusFormat(path, format, data)
	if err != nil {
		return 0, err
	}

	count := 0
	lineNo := 0
	rest := []byte(data)
	for len(rest) > 0 {
		var line []byte
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i], rest[i+1:]
		} else {
			line, rest = rest, nil
		}
		lineNo++

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var t string
		switch format {
		case CorpusJSONL:
			if !gjson.ValidBytes(line) {
				return count, fmt.Errorf("corpus line %d: invalid JSON", lineNo)
			}
			t = gjson.GetBytes(line, "text").String()
			if t == "" {
				continue
			}
		default:
			t = string(line)
		}

		if err := fn(t); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func resolveCorpusFormat(path, format string, data []byte) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case CorpusText, "txt", "plain":
		return CorpusText, nil
	case CorpusJSONL, "ndjson":
		return CorpusJSONL, nil
	case "", CorpusAuto:
	default:
		return "", fmt.Errorf("unknown corpus format %q (want %s|%s|%s)", format, CorpusAuto, CorpusText, CorpusJSONL)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return CorpusJSONL, nil
	}
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		return CorpusJSONL, nil
	}

	return CorpusText, nil
}
