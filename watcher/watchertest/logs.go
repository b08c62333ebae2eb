// Package watchertest provides an in-memory chain endpoint and messenger log
// builders for tests of the watcher and its callers.
package watchertest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/omni/messenger-watcher/contract/messengerabi"
	"github.com/omni/messenger-watcher/logging"
)

func SentMessageLog(messenger, target, sender common.Address, message []byte, nonce, gasLimit int64) *types.Log {
	return SentMessageLogWithValues(messenger, target, sender, message, big.NewInt(nonce), big.NewInt(gasLimit))
}

// SentMessageLogWithValues takes uint256 nonce and gas limit values.
func SentMessageLogWithValues(messenger, target, sender common.Address, message []byte, nonce, gasLimit *big.Int) *types.Log {
	event := messengerabi.CrossDomainMessengerABI.Events["SentMessage"]
	data, err := event.Inputs.NonIndexed().Pack(sender, message, nonce, gasLimit)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: messenger,
		Topics: []common.Hash{
			messengerabi.SentMessageEventSignature,
			common.BytesToHash(target.Bytes()),
		},
		Data: data,
	}
}

func RelayLog(messenger common.Address, msgHash common.Hash, success bool) *types.Log {
	topic := messengerabi.RelayedMessageEventSignature
	if !success {
		topic = messengerabi.FailedRelayedMessageEventSignature
	}
	return &types.Log{
		Address: messenger,
		Topics:  []common.Hash{topic, msgHash},
	}
}

// NewLogger returns a logger that drops every entry.
func NewLogger() logging.Logger {
	logger, _ := test.NewNullLogger()
	return logging.Wrap(logrus.NewEntry(logger))
}
