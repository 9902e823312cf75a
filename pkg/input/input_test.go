package input

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/fai"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
)

func TestParseAlignmentMultiline(t *testing.T) {
	data := ">ref1 genotype 1a\nacgt-\nacgt\n>ref2\nAAAAC\nGGGG\n>query1\nNNNNN\nTTTT\n"

	aln, err := ParseAlignment([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(aln.IDs, ","); got != "ref1,ref2,query1" {
		t.Fatalf("ids = %s", got)
	}
	if string(aln.Rows[0]) != "ACGT-ACGT" || string(aln.Rows[2]) != "NNNNNTTTT" {
		t.Fatalf("rows = %q", aln.Rows)
	}
	if aln.Len() != 9 {
		t.Fatalf("length = %d", aln.Len())
	}
}

func TestParseAlignmentIrregularLines(t *testing.T) {
	for name, data := range map[string]string{
		"ragged":              ">a\nAC\nGTAC\nG\n>b\nACGTACG\n",
		"crlf":                ">a\r\nACGT\r\nACG\r\n>b\r\nACGTACG\r\n",
		"leading blank lines": "\n\n>a\nACGTACG\n>b\nACG\nTACG\n",
	} {
		aln, err := ParseAlignment([]byte(data))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if strings.Join(aln.IDs, ",") != "a,b" || string(aln.Rows[0]) != "ACGTACG" || string(aln.Rows[1]) != "ACGTACG" {
			t.Fatalf("%s: ids = %v, rows = %q", name, aln.IDs, aln.Rows)
		}
	}
}

func TestParseAlignmentErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "", genotype.ErrEmptyAlignment},
		{"whitespace", "\n \n", genotype.ErrEmptyAlignment},
		{"duplicate", ">a\nACGT\n>a\nACGT\n", ErrFormat},
		{"no header", "ACGT\n", ErrFormat},
		{"unnamed", ">\nACGT\n>b\nACGT\n", ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAlignment([]byte(tt.data)); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseAlignmentUnequalLength(t *testing.T) {
	// the reader may reject the width change itself
	_, err := ParseAlignment([]byte(">a\nACGT\n>b\nACG\n"))
	if !errors.Is(err, genotype.ErrUnequalLength) && !errors.Is(err, ErrFormat) {
		t.Fatalf("expected an unequal length error, got %v", err)
	}
}

func TestLoadAlignmentIndexed(t *testing.T) {
	data := []byte(">ref1\nACGT-\nACGT\n>ref2\nAAAAC\nGGGG\n>query1\nnnnnn\nTTTT\n")
	dir := t.TempDir()
	path := filepath.Join(dir, "aln.fasta")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	idx, err := fai.NewIndex(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	ix, err := os.Create(path + IndexSuffix)
	if err != nil {
		t.Fatal(err)
	}
	if err := fai.WriteTo(ix, idx); err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(); err != nil {
		t.Fatal(err)
	}

	aln, err := LoadAlignment(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(aln.IDs, ","); got != "ref1,ref2,query1" {
		t.Fatalf("ids = %s", got)
	}
	if string(aln.Rows[0]) != "ACGT-ACGT" || string(aln.Rows[2]) != "NNNNNTTTT" {
		t.Fatalf("rows = %q", aln.Rows)
	}
}

func TestLoadAlignmentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aln.fasta")
	if err := os.WriteFile(path, []byte(">x\nAC-T\n>y\nACGT\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	aln, err := LoadAlignment(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aln.Size() != 2 {
		t.Fatalf("size = %d", aln.Size())
	}
	if _, err := LoadAlignment(filepath.Join(t.TempDir(), "missing.fasta")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestParseMetadata(t *testing.T) {
	data := "id\tgenotype\tsubtype\n" +
		"ref1\t1\ta\n" +
		"ref2\t2\tNA\n" +
		"ref3\t3\n" +
		"# comment\n" +
		"q1\tNA\tNA\n" +
		"q2\t\t\n"

	meta, err := ParseMetadata(strings.NewReader(data), '\t')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meta) != 5 {
		t.Fatalf("len = %d", len(meta))
	}
	if s := meta["ref1"]; s.Genotype != 1 || s.Subtype != "a" {
		t.Fatalf("ref1 = %+v", s)
	}
	if s := meta["ref2"]; s.Genotype != 2 || s.Subtype != "" {
		t.Fatalf("ref2 = %+v", s)
	}
	if !meta["q1"].IsQuery() || !meta["q2"].IsQuery() || meta["ref3"].IsQuery() {
		t.Fatalf("query flags wrong: %+v", meta)
	}
}

func TestLoadMetadataCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.csv")
	if err := os.WriteFile(path, []byte("ref1,1,b\nq,NA,\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	meta, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta["ref1"].Subtype != "b" || !meta["q"].IsQuery() {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestParseMetadataErrors(t *testing.T) {
	for name, data := range map[string]string{
		"genotype":  "a\tone\n",
		"negative":  "a\t-1\n",
		"duplicate": "a\t1\na\t2\n",
		"columns":   "a\n",
	} {
		if _, err := ParseMetadata(strings.NewReader(data), '\t'); !errors.Is(err, ErrFormat) {
			t.Errorf("%s: expected ErrFormat, got %v", name, err)
		}
	}
}

func TestFingerprint(t *testing.T) {
	aln := &genotype.Alignment{IDs: []string{"a", "b"}, Rows: [][]byte{[]byte("ACGT"), []byte("AC-T")}}
	meta := genotype.Metadata{"a": {Genotype: 1, Subtype: "a"}, "b": {}}

	fp := Fingerprint(aln, meta)
	if len(fp) != 16 {
		t.Fatalf("fingerprint %q", fp)
	}
	if Fingerprint(aln, meta) != fp {
		t.Fatalf("fingerprint not stable")
	}

	relabeled := genotype.Metadata{"a": {Genotype: 2, Subtype: "a"}, "b": {}}
	if Fingerprint(aln, relabeled) == fp {
		t.Fatalf("label change did not change the fingerprint")
	}
	edited := &genotype.Alignment{IDs: aln.IDs, Rows: [][]byte{[]byte("ACGA"), []byte("AC-T")}}
	if Fingerprint(edited, meta) == fp {
		t.Fatalf("sequence change did not change the fingerprint")
	}
}
