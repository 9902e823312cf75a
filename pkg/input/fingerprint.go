package input

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
)

// Fingerprint hashes the alignment rows and the labels of its sequences so a run
// can be matched to its exact inputs. Metadata entries for sequences outside the
// alignment do not contribute.
func Fingerprint(aln *genotype.Alignment, meta genotype.Metadata) string {
	h := xxh3.New()
	for i, id := range aln.IDs {
		h.WriteString(id)
		h.Write([]byte{0})
		h.Write(aln.Rows[i])
		h.Write([]byte{'\n'})
	}

	ids := append([]string(nil), aln.IDs...)
	sort.Strings(ids)
	for _, id := range ids {
		seq, ok := meta[id]
		if !ok {
			continue
		}
		h.WriteString(id)
		h.WriteString("\t" + strconv.Itoa(seq.Genotype) + "\t" + seq.Subtype + "\n")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
