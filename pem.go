package x509kit

import (
	"bytes"
	"encoding/pem"
	"iter"
	"slices"
)

// IsPEM reports whether data contains a PEM boundary line.
func IsPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}

// pemBlocks yields the PEM blocks of data whose type is in tags, or every
// block when tags is empty.
func pemBlocks(data []byte, tags []string) iter.Seq[*pem.Block] {
	return func(yield func(*pem.Block) bool) {
		rest := data
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				return
			}
			if len(tags) > 0 && !slices.Contains(tags, block.Type) {
				continue
			}
			if !yield(block) {
				return
			}
		}
	}
}

// firstPEMBlock returns the first block of data whose type is in tags.
func firstPEMBlock(data []byte, tags ...string) *pem.Block {
	next, stop := iter.Pull(pemBlocks(data, tags))
	defer stop()
	block, _ := next()
	return block
}
