package catalog

import (
	"hash/fnv"
	"math/rand/v2"
	"sort"

	"github.com/ibrbtv/backend/internal/models"
)

// Shuffle reorders videos in place with a Fisher–Yates shuffle. The permutation
// depends only on seed and the set of ids, so re-deriving the same catalog
// keeps its order while any change to the set reshuffles it.
func Shuffle(videos []models.Video, seed uint64) {
	if len(videos) < 2 {
		return
	}

	// Start from a canonical order so the input order never leaks into the result.
	sort.SliceStable(videos, func(i, j int) bool { return videos[i].ID < videos[j].ID })

	rng := rand.New(rand.NewPCG(seed, fingerprint(videos)))
	for i := len(videos) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		videos[i], videos[j] = videos[j], videos[i]
	}
}

// fingerprint hashes the sorted id set.
func fingerprint(sorted []models.Video) uint64 {
	h := fnv.New64a()
	for _, v := range sorted {
		_, _ = h.Write([]byte(v.ID))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
