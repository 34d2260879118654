package roughtime

// Tree is a write-once, level-by-level binary Merkle tree over a
// batch's leaf hashes, per spec.md §4.3. It is built once per batch
// and used to extract a sibling PATH for each leaf; it never mutates
// after construction and shares no sub-structure across batches.
type Tree struct {
	levels [][]Root // levels[0] is the leaves, levels[len-1] is {root}
}

// BuildTree constructs a Merkle tree over leaves, in order. leaves
// must be non-empty.
func BuildTree(leaves []Root) *Tree {
	if len(leaves) == 0 {
		panic("roughtime: empty batch has no Merkle tree")
	}
	levels := [][]Root{append([]Root(nil), leaves...)}
	for len(levels[len(levels)-1]) > 1 {
		cur := levels[len(levels)-1]
		next := make([]Root, 0, (len(cur)+1)/2)
		i := 0
		for ; i+1 < len(cur); i += 2 {
			next = append(next, HashNode(cur[i], cur[i+1]))
		}
		if i < len(cur) {
			// Odd count at this level: carry the last node up
			// unchanged (spec.md §4.3's "odd-count policy").
			next = append(next, cur[i])
		}
		levels = append(levels, next)
	}
	return &Tree{levels: levels}
}

// Root returns the tree's root hash.
func (t *Tree) Root() Root {
	return t.levels[len(t.levels)-1][0]
}

// noSiblingMarker fills a PATH entry for a level where idx was the
// carried-up odd node (no real sibling to hash against), so PATH
// always has exactly one entry per level and INDX's bits line up with
// path entries one-to-one (spec.md §8: proof length is
// ceil(log2(B))×32, not a variable count that depends on which levels
// happened to carry). A genuine sibling hash colliding with the
// all-zero value is negligible.
var noSiblingMarker Root

// Path returns the sibling path for leaf index i, in leaf-to-root
// order. len(Path) == ceil(log2(len(leaves))), the tree's height,
// regardless of how many levels carried idx up unchanged.
func (t *Tree) Path(i int) []Root {
	path := make([]Root, 0, len(t.levels)-1)
	idx := i
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		sibling := idx ^ 1
		if sibling < len(nodes) {
			path = append(path, nodes[sibling])
		} else {
			// idx was the carried-up odd node at this level: no
			// sibling to record, but the level still counts.
			path = append(path, noSiblingMarker)
		}
		idx /= 2
	}
	return path
}

// VerifyPath recomputes the root for leaf starting at index idx given
// its sibling path, and returns it; the caller compares the result
// against the expected root (e.g. SREP.ROOT). This is the
// client-side half of spec.md §4.3's verification procedure, also
// used internally by tests. It walks one tree level per path entry,
// mirroring Path: a noSiblingMarker entry just shifts idx without
// hashing, exactly like the carried node it stands in for.
func VerifyPath(leaf Root, idx uint32, path []Root) Root {
	hash := leaf
	for _, sibling := range path {
		if sibling != noSiblingMarker {
			if idx&1 == 0 {
				hash = HashNode(hash, sibling)
			} else {
				hash = HashNode(sibling, hash)
			}
		}
		idx >>= 1
	}
	return hash
}
