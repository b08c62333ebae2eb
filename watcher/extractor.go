package watcher

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/omni/messenger-watcher/contract"
)

// ExtractMessageHashes returns the hashes of all messages sent by the
// messenger in the receipt, in log order. Duplicates are kept.
func ExtractMessageHashes(receipt *types.Receipt, messenger common.Address) ([]common.Hash, error) {
	msgs, err := contract.NewMessenger(messenger).SentMessages(receipt)
	if err != nil {
		return nil, err
	}
	return MessageHashes(msgs)
}

func MessageHashes(msgs []*contract.SentMessage) ([]common.Hash, error) {
	hashes := make([]common.Hash, len(msgs))
	for i, msg := range msgs {
		hash, err := msg.Hash()
		if err != nil {
			return nil, fmt.Errorf("can't hash message at log index %d: %w", msg.Log.Index, err)
		}
		hashes[i] = hash
	}
	return hashes, nil
}
