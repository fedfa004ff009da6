package relay

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Split cuts the range into consecutive chunks of at most size blocks.
func (r BlockRange) Split(size uint64) ([]BlockRange, error) {
	if size == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if r.To < r.From {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	var chunks []BlockRange
	for start := r.From; ; start += size {
		end := r.To
		if r.To-start >= size {
			end = start + size - 1
		}
		chunks = append(chunks, BlockRange{From: start, To: end})
		if end == r.To {
			return chunks, nil
		}
	}
}
