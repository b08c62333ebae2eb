package watcher

type BlocksRange struct {
	From uint
	To   uint
}

// SplitBlockRange cuts [fromBlock, toBlock] into ranges of at most maxSize
// blocks. A zero maxSize keeps the whole range in one piece.
func SplitBlockRange(fromBlock uint, toBlock uint, maxSize uint) []*BlocksRange {
	batches := make([]*BlocksRange, 0, 10)
	if maxSize == 0 {
		if fromBlock <= toBlock {
			batches = append(batches, &BlocksRange{From: fromBlock, To: toBlock})
		}
		return batches
	}
	for fromBlock <= toBlock {
		batchToBlock := fromBlock + maxSize - 1
		if batchToBlock > toBlock {
			batchToBlock = toBlock
		}
		batches = append(batches, &BlocksRange{
			From: fromBlock,
			To:   batchToBlock,
		})
		fromBlock += maxSize
	}
	return batches
}

// LookbackWindow is [head-lookback, head], clamped at the genesis block.
func LookbackWindow(head, lookback uint) *BlocksRange {
	if head < lookback {
		return &BlocksRange{From: 0, To: head}
	}
	return &BlocksRange{From: head - lookback, To: head}
}
