// Package dataset loads sentence-pair similarity data from CSV or Parquet
// files and fetches dataset splits from the Hugging Face hub.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	parquet "github.com/parquet-go/parquet-go"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("dataset: missing column")

// ErrScoreRange is returned for a score outside [MinScore, MaxScore].
var ErrScoreRange = errors.New("dataset: score out of range")

// Score bounds of the similarity scale.
const (
	MinScore = 0.0
	MaxScore = 5.0
)

func checkScore(score float64) error {
	if math.IsNaN(score) || score < MinScore || score > MaxScore {
		return fmt.Errorf("%w: %v not in [%g, %g]", ErrScoreRange, score, MinScore, MaxScore)
	}

	return nil
}

// Pair is one human-scored sentence pair. Score lies in [0, 5].
type Pair struct {
	TextA string
	TextB string
	Score float64
}

var columnAliases = map[string][]string{
	"text_a": {"sentence1", "text_a"},
	"text_b": {"sentence2", "text_b"},
	"score":  {"score", "similarity"},
}

// stsRow follows the RO-STS Parquet schema.
type stsRow struct {
	Sentence1 string  `parquet:"sentence1,optional"`
	Sentence2 string  `parquet:"sentence2,optional"`
	Score     float64 `parquet:"score,optional"`
}

// Load reads pairs from path. Files ending in .parquet are read as Parquet,
// everything else as CSV (or TSV when the extension is .tsv).
func Load(path string) ([]Pair, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return loadParquet(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("dataset: open %s: %w", path, err)
		}
		defer f.Close()

		comma := ','
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			comma = '\t'
		}

		pairs, err := ReadCSV(f, comma)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s: %w", path, err)
		}

		return pairs, nil
	}
}

// ReadCSV parses delimited text with a header row naming the text and score
// columns.
func ReadCSV(r io.Reader, comma rune) ([]Pair, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}

		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var pairs []Pair
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		p, err := pairFromRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		pairs = append(pairs, p)
	}

	return pairs, nil
}

type columns struct {
	textA, textB, score int
}

func resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}

	find := func(name string) (int, error) {
		for _, alias := range columnAliases[name] {
			if i, ok := index[alias]; ok {
				return i, nil
			}
		}

		return 0, fmt.Errorf("%w: %s (accepted: %s)", ErrMissingColumn, name, strings.Join(columnAliases[name], "|"))
	}

	var (
		cols columns
		err  error
	)

	if cols.textA, err = find("text_a"); err != nil {
		return columns{}, err
	}

	if cols.textB, err = find("text_b"); err != nil {
		return columns{}, err
	}

	if cols.score, err = find("score"); err != nil {
		return columns{}, err
	}

	return cols, nil
}

func pairFromRecord(rec []string, cols columns) (Pair, error) {
	need := max(cols.textA, cols.textB, cols.score)
	if len(rec) <= need {
		return Pair{}, fmt.Errorf("record has %d fields, need %d", len(rec), need+1)
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(rec[cols.score]), 64)
	if err != nil {
		return Pair{}, fmt.Errorf("parse score %q: %w", rec[cols.score], err)
	}

	if err := checkScore(score); err != nil {
		return Pair{}, err
	}

	return Pair{TextA: rec[cols.textA], TextB: rec[cols.textB], Score: score}, nil
}

func loadParquet(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("dataset: stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("dataset: open parquet %s: %w", path, err)
	}

	for _, name := range []string{"sentence1", "sentence2", "score"} {
		if _, ok := pf.Schema().Lookup(name); !ok {
			return nil, fmt.Errorf("dataset: %s: %w: %s", path, ErrMissingColumn, name)
		}
	}

	reader := parquet.NewGenericReader[stsRow](pf)
	defer reader.Close()

	var pairs []Pair
	batch := make([]stsRow, 256)
	for {
		n, err := reader.Read(batch)
		for _, row := range batch[:n] {
			if err := checkScore(row.Score); err != nil {
				return nil, fmt.Errorf("dataset: %s row %d: %w", path, len(pairs), err)
			}
			pairs = append(pairs, Pair{TextA: row.Sentence1, TextB: row.Sentence2, Score: row.Score})
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("dataset: read parquet %s: %w", path, err)
		}

		if n == 0 {
			break
		}
	}

	return pairs, nil
}

// WriteParquet stores pairs using the RO-STS schema.
func WriteParquet(path string, pairs []Pair) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}

	w := parquet.NewGenericWriter[stsRow](f)

	rows := make([]stsRow, len(pairs))
	for i, p := range pairs {
		rows[i] = stsRow{Sentence1: p.TextA, Sentence2: p.TextB, Score: p.Score}
	}

	if _, err := w.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("dataset: write %s: %w", path, err)
	}

	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("dataset: close writer %s: %w", path, err)
	}

	return f.Close()
}

// Scores returns the human scores of pairs in order.
func Scores(pairs []Pair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = p.Score
	}

	return out
}
