package naming

import (
	"github.com/scanshelf/scanshelf/internal/mapping"
	"github.com/scanshelf/scanshelf/internal/validation"
)

// Resolution is the outcome of resolving a scanned identifier.
type Resolution struct {
	// BaseName is the stem every asset of this product is named from.
	BaseName string `json:"base_name"`
	// Identifier is the identifier the base name was built from.
	Identifier string `json:"identifier"`
	// Bucket is where the product's assets are stored.
	Bucket Bucket `json:"bucket"`
	// Fallback is set when the secondary identifier was requested but not
	// available, so the primary identifier was used instead.
	Fallback bool `json:"secondary_unavailable"`
}

// Resolve picks the identifier a product's media is named by. It is pure: the
// same inputs always give the same result.
//
// With the policy off the primary identifier is used. With it on, the mapped
// secondary identifier is used when the table has one and it is usable as a file
// name; otherwise the primary identifier is used and Fallback is set.
func Resolve(primaryID string, policy Policy, table *mapping.Table) Resolution {
	res := Resolution{Identifier: primaryID, Bucket: BucketPrimary}

	if policy.UseSecondaryIdentifier {
		secondary, ok := table.Lookup(primaryID)
		if ok && validation.IsIdentifier(secondary) {
			res.Identifier = secondary
			res.Bucket = BucketSecondary
		} else {
			res.Fallback = true
		}
	}

	res.BaseName = res.Identifier + policy.labelSuffix()
	return res
}
