package store

import (
	"context"
	"fmt"

	"github.com/osrsgoaltracker/goaldao/table"
)

// queryAll drains every page of a prefix query. Listing operations use it
// because their result sets are small (characters, goals, channels);
// progress history goes through the paginated ListProgress instead.
func queryAll(ctx context.Context, client table.Client, partitionKey, sortKeyPrefix string) ([]table.Item, error) {
	var items []table.Item
	opts := table.QueryOptions{}
	for {
		page, err := client.QueryPrefix(ctx, partitionKey, sortKeyPrefix, opts)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", sortKeyPrefix, err)
		}
		items = append(items, page.Items...)
		if page.NextToken == "" {
			return items, nil
		}
		opts.StartToken = page.NextToken
	}
}
