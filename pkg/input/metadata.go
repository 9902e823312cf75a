package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
)

// LoadMetadata reads a sequence metadata table. Files ending in .csv are comma
// separated, anything else is tab separated.
func LoadMetadata(path string) (genotype.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata: %w", err)
	}
	defer f.Close()

	comma := '\t'
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		comma = ','
	}
	meta, err := ParseMetadata(f, comma)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	return meta, nil
}

// ParseMetadata reads rows of id, genotype and an optional subtype. A header row is
// skipped when its first column is "id". An empty or NA genotype marks a query.
func ParseMetadata(r io.Reader, comma rune) (genotype.Metadata, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	meta := make(genotype.Metadata)
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if row == 1 && strings.EqualFold(strings.TrimSpace(fields[0]), "id") {
			continue
		}
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%w: row %d: want 2 or 3 columns, got %d", ErrFormat, row, len(fields))
		}

		id := strings.TrimSpace(fields[0])
		if id == "" {
			return nil, fmt.Errorf("%w: row %d: empty id", ErrFormat, row)
		}
		if _, dup := meta[id]; dup {
			return nil, fmt.Errorf("%w: row %d: duplicate id %s", ErrFormat, row, id)
		}

		g, err := parseGenotype(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrFormat, row, err)
		}
		seq := genotype.Sequence{ID: id, Genotype: g}
		if len(fields) == 3 && g != genotype.Unlabeled {
			seq.Subtype = missingAsEmpty(fields[2])
		}
		meta[id] = seq
	}
	return meta, nil
}

func parseGenotype(s string) (int, error) {
	s = missingAsEmpty(s)
	if s == "" {
		return genotype.Unlabeled, nil
	}
	g, err := strconv.Atoi(s)
	if err != nil || g <= 0 {
		return 0, fmt.Errorf("invalid genotype %q", s)
	}
	return g, nil
}

func missingAsEmpty(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "NA") {
		return ""
	}
	return s
}
