package batch

// Item is one logical element of a batch request. Size is the item's
// contribution to the per-chunk size budget, typically a token count.
type Item struct {
	Payload map[string]any
	Size    int
}

// Split partitions items into ordered chunks bounded by both a maximum
// item count and a maximum aggregate size. Both limits are enforced; a
// non-positive limit means unbounded on that axis. A single item larger
// than maxSize still gets a chunk of its own, it cannot be split further.
func Split(items []Item, maxItems, maxSize int) [][]Item {
	if len(items) == 0 {
		return nil
	}

	var (
		chunks  [][]Item
		current []Item
		size    int
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, current)
			current, size = nil, 0
		}
	}

	for _, item := range items {
		overItems := maxItems > 0 && len(current) >= maxItems
		overSize := maxSize > 0 && len(current) > 0 && size+item.Size > maxSize
		if overItems || overSize {
			flush()
		}
		current = append(current, item)
		size += item.Size
	}
	flush()
	return chunks
}
