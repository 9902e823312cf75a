// Package input loads the aligned sequences and their genotype metadata.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/biogo/hts/fai"
	"github.com/virus-evolution/gofasta/pkg/fastaio"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
)

// ErrFormat marks malformed alignment or metadata input
var ErrFormat = errors.New("malformed input")

// IndexSuffix is appended to an alignment path to find its fai index
const IndexSuffix = ".fai"

// LoadAlignment reads an aligned FASTA file. When a samtools-style index sits next to
// the file, records are read through it; otherwise the file is parsed as a stream.
func LoadAlignment(path string) (*genotype.Alignment, error) {
	if _, err := os.Stat(path + IndexSuffix); err == nil {
		aln, err := loadIndexed(path, path+IndexSuffix)
		if err != nil {
			return nil, fmt.Errorf("failed to read indexed alignment %s: %w", path, err)
		}
		return aln, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alignment: %w", err)
	}
	aln, err := ParseAlignment(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse alignment %s: %w", path, err)
	}
	return aln, nil
}

// ParseAlignment parses aligned FASTA. Rows keep file order and are upper-cased;
// every row must have the same length.
func ParseAlignment(data []byte) (*genotype.Alignment, error) {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 {
		return nil, genotype.ErrEmptyAlignment
	}
	if data[0] != '>' {
		return nil, fmt.Errorf("%w: sequence data before first header", ErrFormat)
	}

	records, err := readRecords(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	aln := &genotype.Alignment{
		IDs:  make([]string, 0, len(records)),
		Rows: make([][]byte, 0, len(records)),
	}
	for _, rec := range records {
		aln.IDs = append(aln.IDs, rec.ID)
		aln.Rows = append(aln.Rows, bytes.ToUpper([]byte(rec.Seq)))
	}
	return finish(aln)
}

// readRecords collects the records fastaio streams from r. A malformed record can make
// the reader panic, which is reported as ErrFormat.
func readRecords(r io.Reader) ([]fastaio.FastaRecord, error) {
	records := make(chan fastaio.FastaRecord)
	errs := make(chan error)
	done := make(chan bool)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		defer func() {
			if p := recover(); p != nil {
				errs <- fmt.Errorf("%v", p)
			}
		}()
		fastaio.ReadAlignment(r, records, errs, done)
	}()

	var out []fastaio.FastaRecord
	var first error
	for {
		select {
		case rec := <-records:
			out = append(out, rec)
		case err := <-errs:
			if first == nil {
				first = err
			}
		case <-done:
		case <-finished:
			if first != nil {
				return nil, fmt.Errorf("%w: %v", ErrFormat, first)
			}
			return out, nil
		}
	}
}

// loadIndexed reads every record named in the fai index, in file order
func loadIndexed(path, indexPath string) (*genotype.Alignment, error) {
	ix, err := os.Open(indexPath)
	if err != nil {
		return nil, err
	}
	defer ix.Close()
	idx, err := fai.ReadFrom(ix)
	if err != nil {
		return nil, fmt.Errorf("%w: index %s: %v", ErrFormat, indexPath, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records := make([]fai.Record, 0, len(idx))
	for _, rec := range idx {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Start < records[j].Start })

	file := fai.NewFile(f, idx)
	aln := &genotype.Alignment{
		IDs:  make([]string, 0, len(records)),
		Rows: make([][]byte, 0, len(records)),
	}
	for _, rec := range records {
		// names may carry the header description
		fields := strings.Fields(rec.Name)
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: empty sequence name", ErrFormat)
		}
		seq, err := file.Seq(rec.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to seek %s: %w", rec.Name, err)
		}
		row, err := io.ReadAll(seq)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", rec.Name, err)
		}
		aln.IDs = append(aln.IDs, fields[0])
		aln.Rows = append(aln.Rows, bytes.ToUpper(row))
	}
	return finish(aln)
}

// finish checks the parsed rows: unique names, at least one column, equal lengths
func finish(aln *genotype.Alignment) (*genotype.Alignment, error) {
	if aln.Size() == 0 || aln.Len() == 0 {
		return nil, genotype.ErrEmptyAlignment
	}
	seen := make(map[string]bool, aln.Size())
	for _, id := range aln.IDs {
		if id == "" {
			return nil, fmt.Errorf("%w: empty sequence name", ErrFormat)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate sequence %s", ErrFormat, id)
		}
		seen[id] = true
	}
	for i, row := range aln.Rows {
		if len(row) != len(aln.Rows[0]) {
			return nil, fmt.Errorf("%w: %s has %d columns, %s has %d", genotype.ErrUnequalLength,
				aln.IDs[i], len(row), aln.IDs[0], len(aln.Rows[0]))
		}
	}
	return aln, nil
}
