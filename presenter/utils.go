package presenter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/messenger-watcher/cache"
	"github.com/omni/messenger-watcher/contract"
	"github.com/omni/messenger-watcher/entity"
	"github.com/omni/messenger-watcher/presenter/http/render"
	"github.com/omni/messenger-watcher/watcher"
)

var formats = map[string]string{
	"1":        "https://etherscan.io/tx/%s",
	"5":        "https://goerli.etherscan.io/tx/%s",
	"10":       "https://optimistic.etherscan.io/tx/%s",
	"56":       "https://bscscan.com/tx/%s",
	"100":      "https://gnosisscan.io/tx/%s",
	"288":      "https://bobascan.com/tx/%s",
	"420":      "https://goerli-optimism.etherscan.io/tx/%s",
	"11155111": "https://sepolia.etherscan.io/tx/%s",
}

func txLink(chainID string, txHash common.Hash) string {
	if format, ok := formats[chainID]; ok {
		return fmt.Sprintf(format, txHash)
	}
	return txHash.String()
}

func newTxInfo(chainID string, blockNumber uint64, txHash common.Hash, logIndex uint) *TxInfo {
	return &TxInfo{
		ChainID:     chainID,
		BlockNumber: blockNumber,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Link:        txLink(chainID, txHash),
	}
}

func sentMessageToInfo(msg *contract.SentMessage) (*SentMessageInfo, error) {
	msgHash, err := msg.Hash()
	if err != nil {
		return nil, err
	}
	return &SentMessageInfo{
		MsgHash:  msgHash,
		Target:   msg.Target,
		Sender:   msg.Sender,
		Message:  msg.Message,
		Nonce:    msg.Nonce.String(),
		GasLimit: msg.GasLimit.String(),
		LogIndex: msg.Log.Index,
	}, nil
}

func messageToInfo(msg *entity.Message) *MessageInfo {
	return &MessageInfo{
		MsgHash:  msg.MsgHash,
		Domain:   msg.Domain,
		Target:   msg.Target,
		Sender:   msg.Sender,
		Data:     msg.Data,
		Nonce:    msg.Nonce,
		GasLimit: msg.GasLimit,
		Tx:       newTxInfo(msg.ChainID, uint64(msg.BlockNumber), msg.TxHash, msg.LogIndex),
	}
}

func relayToResult(watcherID string, domain watcher.Domain, chainID string, msgHash common.Hash, relay *watcher.Relay) *RelayResult {
	res := &RelayResult{
		WatcherID: watcherID,
		MsgHash:   msgHash,
		Domain:    string(domain),
		Status:    RelayStatePending,
	}
	if relay == nil {
		return res
	}
	res.Status = RelayState(relay.Status)
	res.Tx = newTxInfo(chainID, relay.Log.BlockNumber, relay.Log.TxHash, relay.Log.Index)
	if relay.Receipt != nil {
		res.GasUsed = relay.Receipt.GasUsed
	}
	return res
}

func storedRelayToResult(relay *entity.Relay) *RelayResult {
	return &RelayResult{
		WatcherID: relay.WatcherID,
		MsgHash:   relay.MsgHash,
		Domain:    relay.Domain,
		Status:    RelayState(relay.Status),
		Tx:        newTxInfo(relay.ChainID, uint64(relay.BlockNumber), relay.TxHash, relay.LogIndex),
	}
}

func relayToCached(domain watcher.Domain, chainID string, relay *watcher.Relay) *cache.Relay {
	return &cache.Relay{
		MsgHash:     relay.MsgHash,
		Domain:      string(domain),
		ChainID:     chainID,
		TxHash:      relay.Log.TxHash,
		BlockNumber: uint(relay.Log.BlockNumber),
		Status:      string(relay.Status),
	}
}

// withErrorStatus maps watcher failures onto http statuses.
func withErrorStatus(err error) error {
	switch {
	case errors.Is(err, watcher.ErrUnknownDomain):
		return render.WithStatus(http.StatusBadRequest, err)
	case errors.Is(err, watcher.ErrMultipleRelays):
		return render.WithStatus(http.StatusConflict, err)
	case errors.Is(err, watcher.ErrEndpointUnavailable), errors.Is(err, watcher.ErrSubscriptionFailed):
		return render.WithStatus(http.StatusBadGateway, err)
	case errors.Is(err, context.DeadlineExceeded):
		return render.WithStatus(http.StatusGatewayTimeout, err)
	default:
		return err
	}
}
