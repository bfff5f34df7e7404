package dispatcher

import (
	"github.com/sells-group/enrich-cli/internal/connector"
	"github.com/sells-group/enrich-cli/internal/model"
)

// Assignment is one unit of concurrent work: a source, the credential its
// connector instance is pinned to, and the entities it must resolve.
type Assignment struct {
	Source    connector.Source
	PinnedKey string
	Entities  []model.Entity
}

// Partition splits entities round-robin across the given sources, then
// sub-partitions each source's share by credential. The split is stable:
// the same input and source order always yields the same assignments, so a
// resumed run lands entities on the same sources.
func Partition(entities []model.Entity, sources []connector.Source) []Assignment {
	if len(entities) == 0 || len(sources) == 0 {
		return nil
	}

	shares := make([][]model.Entity, len(sources))
	for i, e := range entities {
		shares[i%len(sources)] = append(shares[i%len(sources)], e)
	}

	var out []Assignment
	for i, src := range sources {
		out = append(out, subPartition(src, shares[i])...)
	}
	return out
}

// subPartition splits one source's share across its credentials. Each chunk
// gets its own pinned connector instance; chunks are capped at
// MaxPerCredential when the source is quota-gated. With more chunks than
// keys the keys repeat, relying on pool rotation to spread the load.
func subPartition(src connector.Source, share []model.Entity) []Assignment {
	if len(share) == 0 {
		return nil
	}

	var keys []string
	if src.Credentials != nil {
		keys = src.Credentials.Keys()
	}
	if len(keys) == 0 {
		return []Assignment{{Source: src, Entities: share}}
	}

	chunkSize := src.MaxPerCredential
	if chunkSize <= 0 {
		// Unlimited quota: split evenly so every credential carries work.
		chunkSize = (len(share) + len(keys) - 1) / len(keys)
	}

	var out []Assignment
	for i, start := 0, 0; start < len(share); i, start = i+1, start+chunkSize {
		end := start + chunkSize
		if end > len(share) {
			end = len(share)
		}
		out = append(out, Assignment{
			Source:    src,
			PinnedKey: keys[i%len(keys)],
			Entities:  share[start:end],
		})
	}
	return out
}

// chunk splits entities into batches of at most size.
func chunk(entities []model.Entity, size int) [][]model.Entity {
	if size <= 0 {
		size = len(entities)
	}
	var out [][]model.Entity
	for start := 0; start < len(entities); start += size {
		end := start + size
		if end > len(entities) {
			end = len(entities)
		}
		out = append(out, entities[start:end])
	}
	return out
}
