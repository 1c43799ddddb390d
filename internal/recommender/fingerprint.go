package recommender

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/temcen/gamerec/pkg/models"
)

// fingerprintLength is the number of hex characters kept from the digest.
const fingerprintLength = 32

// Fingerprint identifies the model that opts would build from snapshot.
// Equal inputs, in the same record order, give the same fingerprint in every
// process, so it is safe to use in shared caches.
func Fingerprint(snapshot models.Snapshot, opts Options) string {
	h := sha256.New()

	fmt.Fprintf(h, "interactions:%q|%v|%v|%v\n",
		opts.Interactions.Formula, opts.Interactions.HoursThreshold,
		opts.Interactions.ThresholdMultiplier, opts.Interactions.HoursDivisor)
	fmt.Fprintf(h, "expansion:%d|%d|%d\n",
		opts.Expansion.InitialNeighbors, opts.Expansion.NeighborStep, opts.Expansion.MaxRounds)

	writeSection(h, "vocabulary", len(snapshot.Vocabulary))
	for _, label := range snapshot.Vocabulary {
		fmt.Fprintf(h, "%q\n", label)
	}

	writeSection(h, "catalog", len(snapshot.Catalog))
	for _, game := range snapshot.Catalog {
		year := "null"
		if game.ReleaseYear != nil {
			year = fmt.Sprint(*game.ReleaseYear)
		}
		fmt.Fprintf(h, "%q|%q|%q|%v|%s|%t|%q\n",
			game.ItemID, game.Name, game.Developer, game.Price, year, game.FreeToPlay, game.Categories)
	}

	writeSection(h, "reviews", len(snapshot.Reviews))
	for _, review := range snapshot.Reviews {
		fmt.Fprintf(h, "%q|%q|%t|%d\n", review.UserID, review.ItemID, review.Recommend, int(review.Sentiment))
	}

	writeSection(h, "playtime", len(snapshot.Playtime))
	for _, record := range snapshot.Playtime {
		fmt.Fprintf(h, "%q|%q|%v\n", record.UserID, record.ItemID, record.Hours)
	}

	return hex.EncodeToString(h.Sum(nil))[:fingerprintLength]
}

func writeSection(h hash.Hash, name string, size int) {
	fmt.Fprintf(h, "#%s:%d\n", name, size)
}
