package table

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// cursor is the JSON payload of a page token: the key of the last item
// returned in the previous page.
type cursor struct {
	PartitionKey string `json:"pk"`
	SortKey      string `json:"sk"`
}

// EncodeToken builds an opaque continuation token from the key of the last
// item in a page.
func EncodeToken(partitionKey, sortKey string) string {
	data, err := json.Marshal(cursor{PartitionKey: partitionKey, SortKey: sortKey})
	if err != nil {
		// cursor contains only strings; Marshal cannot fail.
		panic(err)
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeToken recovers the exclusive start key from a continuation token.
func DecodeToken(token string) (partitionKey, sortKey string, err error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("malformed page token: %w", err)
	}

	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return "", "", fmt.Errorf("malformed page token: %w", err)
	}

	if c.PartitionKey == "" || c.SortKey == "" {
		return "", "", fmt.Errorf("malformed page token: missing key")
	}

	return c.PartitionKey, c.SortKey, nil
}
