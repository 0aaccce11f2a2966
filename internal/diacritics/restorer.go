package diacritics

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/example/go-ronlp/internal/text"
)

// Generator produces a first-pass accented version of a line.
type Generator interface {
	Generate(ctx context.Context, line string) (string, error)
}

// Options configures a Restorer.
type Options struct {
	// AlignToInput projects the corrected output onto the input line.
	AlignToInput bool
	// FixPunctuation removes the space before periods in unaligned output.
	FixPunctuation bool
	// MaxChunkChars splits long lines at sentence boundaries before
	// generation. Zero disables splitting.
	MaxChunkChars int
	Logger        *slog.Logger
}

// Restorer runs generation followed by dictionary correction.
type Restorer struct {
	gen  Generator
	dict *Dictionary
	opts Options
	log  *slog.Logger
}

// NewRestorer wires a generator and an optional dictionary. A nil dictionary
// disables correction.
func NewRestorer(gen Generator, dict *Dictionary, opts Options) *Restorer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Restorer{gen: gen, dict: dict, opts: opts, log: log}
}

// Dictionary returns the correction dictionary, which may be nil.
func (r *Restorer) Dictionary() *Dictionary {
	return r.dict
}

// Restore accents a single line. An empty or whitespace-only line yields "".
func (r *Restorer) Restore(ctx context.Context, line string) (string, error) {
	line = strings.TrimSpace(text.Canonical(line))
	if line == "" {
		return "", nil
	}

	out, err := r.generate(ctx, line)
	if err != nil {
		return "", err
	}

	if r.opts.AlignToInput {
		out = Align(line, out)
	}
	out = r.dict.Correct(out)
	if r.opts.FixPunctuation && !r.opts.AlignToInput {
		out = FixPunctuation(out)
	}

	return strings.TrimSpace(out), nil
}

func (r *Restorer) generate(ctx context.Context, line string) (string, error) {
	chunks := text.ChunkBySentence(line, r.opts.MaxChunkChars)

	var b strings.Builder
	for i, chunk := range chunks {
		core := strings.TrimRightFunc(chunk, unicode.IsSpace)
		if core == "" {
			b.WriteString(chunk)
			continue
		}

		out, err := r.gen.Generate(ctx, core)
		if err != nil {
			return "", fmt.Errorf("generate chunk %d: %w", i, err)
		}
		b.WriteString(strings.TrimSpace(out))
		b.WriteString(chunk[len(core):])
	}

	return b.String(), nil
}

// RestoreStream restores r line by line into w, writing exactly one output
// line per input line.
func (r *Restorer) RestoreStream(ctx context.Context, in io.Reader, out io.Writer) (int, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	bw := bufio.NewWriter(out)
	start := time.Now()
	lines := 0

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return lines, err
		}

		restored, err := r.Restore(ctx, sc.Text())
		if err != nil {
			return lines, fmt.Errorf("line %d: %w", lines+1, err)
		}
		if _, err := bw.WriteString(restored + "\n"); err != nil {
			return lines, fmt.Errorf("write line %d: %w", lines+1, err)
		}
		lines++

		if lines%100 == 0 {
			r.log.DebugContext(ctx, "restore progress", "lines", lines)
		}
	}
	if err := sc.Err(); err != nil {
		return lines, fmt.Errorf("read input: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return lines, fmt.Errorf("flush output: %w", err)
	}

	r.log.InfoContext(ctx, "restore complete",
		slog.Int("lines", lines),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return lines, nil
}

// RestoreFile restores the file at inPath into outPath. The output is written
// to a temporary file in the same directory and renamed on success.
func (r *Restorer) RestoreFile(ctx context.Context, inPath, outPath string) (int, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = in.Close() }()

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(outPath)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()

	lines, err := r.RestoreStream(ctx, in, tmp)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return lines, err
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return lines, fmt.Errorf("rename output: %w", err)
	}

	return lines, nil
}
