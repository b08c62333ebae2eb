package presenter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type RelayState string

const (
	RelayStateSucceeded RelayState = "succeeded"
	RelayStateFailed    RelayState = "failed"
	RelayStatePending   RelayState = "pending"
)

type TxInfo struct {
	ChainID     string      `json:"chainId"`
	BlockNumber uint64      `json:"blockNumber"`
	TxHash      common.Hash `json:"txHash"`
	LogIndex    uint        `json:"logIndex"`
	Link        string      `json:"link"`
}

type SentMessageInfo struct {
	MsgHash  common.Hash    `json:"msgHash"`
	Target   common.Address `json:"target"`
	Sender   common.Address `json:"sender"`
	Message  hexutil.Bytes  `json:"message"`
	Nonce    string         `json:"nonce"`
	GasLimit string         `json:"gasLimit"`
	LogIndex uint           `json:"logIndex"`
	Relay    *RelayResult   `json:"relay,omitempty"`
}

type TxMessagesResult struct {
	WatcherID string             `json:"watcherId"`
	Domain    string             `json:"domain"`
	ChainID   string             `json:"chainId"`
	TxHash    common.Hash        `json:"txHash"`
	Messages  []*SentMessageInfo `json:"messages"`
}

type MessageInfo struct {
	MsgHash  common.Hash    `json:"msgHash"`
	Domain   string         `json:"domain"`
	Target   common.Address `json:"target"`
	Sender   common.Address `json:"sender"`
	Data     hexutil.Bytes  `json:"data"`
	Nonce    string         `json:"nonce"`
	GasLimit string         `json:"gasLimit"`
	Tx       *TxInfo        `json:"tx"`
}

type TrackResult struct {
	WatcherID string         `json:"watcherId"`
	Domain    string         `json:"domain"`
	TxHash    common.Hash    `json:"txHash"`
	Messages  []*MessageInfo `json:"messages"`
}

type RelayResult struct {
	WatcherID string      `json:"watcherId"`
	MsgHash   common.Hash `json:"msgHash"`
	Domain    string      `json:"domain"`
	Status    RelayState  `json:"status"`
	Tx        *TxInfo     `json:"tx,omitempty"`
	GasUsed   uint64      `json:"gasUsed,omitempty"`
}

type MessageResult struct {
	Message *MessageInfo `json:"message"`
	Relay   *RelayResult `json:"relay"`
	Tracked bool         `json:"tracked"`
}

type UntrackResult struct {
	MsgHash   common.Hash `json:"msgHash"`
	Untracked bool        `json:"untracked"`
}
