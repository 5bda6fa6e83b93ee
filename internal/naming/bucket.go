package naming

import "fmt"

// Bucket is a classification folder: assets named by primary identifier and
// assets named by secondary identifier never share a folder.
type Bucket string

// Buckets.
const (
	BucketPrimary   Bucket = "primary"
	BucketSecondary Bucket = "secondary"
)

// Folders backing each bucket.
const (
	FolderPrimary   = "ProductScanner/Barcodes"
	FolderSecondary = "ProductScanner/ProductCodes"
)

// Buckets lists every bucket in scan order.
var Buckets = []Bucket{BucketPrimary, BucketSecondary}

// Folder returns the store folder for the bucket.
func (b Bucket) Folder() string {
	if b == BucketSecondary {
		return FolderSecondary
	}
	return FolderPrimary
}

// Valid reports whether b is a known bucket.
func (b Bucket) Valid() bool {
	return b == BucketPrimary || b == BucketSecondary
}

// ParseBucket converts a string to a Bucket.
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.Valid() {
		return "", fmt.Errorf("unknown bucket %q (must be primary or secondary)", s)
	}
	return b, nil
}
