package contract

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/omni/messenger-watcher/contract/abi"
	"github.com/omni/messenger-watcher/contract/messengerabi"
)

var (
	ErrMalformedSentMessage = errors.New("malformed SentMessage log")
	ErrNotRelayEvent        = errors.New("log is not a relay outcome event")
)

// SentMessage is a cross-domain message decoded from a single SentMessage log.
type SentMessage struct {
	Target   common.Address
	Sender   common.Address
	Message  []byte
	Nonce    *big.Int
	GasLimit *big.Int
	Log      *types.Log
}

// RelayCalldata is the exact calldata the destination messenger receives for this message.
func (m *SentMessage) RelayCalldata() ([]byte, error) {
	data, err := messengerabi.CrossDomainMessengerABI.Pack(messengerabi.RelayMessageMethod, m.Target, m.Sender, m.Message, m.Nonce)
	if err != nil {
		return nil, fmt.Errorf("cannot encode relayMessage calldata: %w", err)
	}
	return data, nil
}

// Hash is the message hash emitted by RelayedMessage and FailedRelayedMessage on the destination chain.
func (m *SentMessage) Hash() (common.Hash, error) {
	data, err := m.RelayCalldata()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(data), nil
}

type Messenger struct {
	address common.Address
	abi     abi.ABI
}

func NewMessenger(addr common.Address) *Messenger {
	return &Messenger{
		address: addr,
		abi:     messengerabi.CrossDomainMessengerABI,
	}
}

func (c *Messenger) Address() common.Address {
	return c.address
}

func (c *Messenger) IsSentMessage(log *types.Log) bool {
	return log.Address == c.address && len(log.Topics) > 0 && log.Topics[0] == messengerabi.SentMessageEventSignature
}

func (c *Messenger) ParseSentMessage(log *types.Log) (*SentMessage, error) {
	event, data, err := c.abi.ParseLog(log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSentMessage, err)
	}
	if event != messengerabi.SentMessage {
		return nil, fmt.Errorf("%w: unexpected topics layout in tx %s, log index %d", ErrMalformedSentMessage, log.TxHash, log.Index)
	}
	msg := &SentMessage{Log: log}
	var ok [5]bool
	msg.Target, ok[0] = data["target"].(common.Address)
	msg.Sender, ok[1] = data["sender"].(common.Address)
	msg.Message, ok[2] = data["message"].([]byte)
	msg.Nonce, ok[3] = data["messageNonce"].(*big.Int)
	msg.GasLimit, ok[4] = data["gasLimit"].(*big.Int)
	if ok != [5]bool{true, true, true, true, true} {
		return nil, fmt.Errorf("%w: unexpected field types in tx %s, log index %d", ErrMalformedSentMessage, log.TxHash, log.Index)
	}
	return msg, nil
}

// SentMessages returns messages emitted by this messenger in log order.
func (c *Messenger) SentMessages(receipt *types.Receipt) ([]*SentMessage, error) {
	msgs := make([]*SentMessage, 0, len(receipt.Logs))
	for _, log := range receipt.Logs {
		if !c.IsSentMessage(log) {
			continue
		}
		msg, err := c.ParseSentMessage(log)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// RelayEventTopics lists the topic0 values of both relay outcome events.
func RelayEventTopics() []common.Hash {
	return []common.Hash{
		messengerabi.RelayedMessageEventSignature,
		messengerabi.FailedRelayedMessageEventSignature,
	}
}

// ParseRelay returns the relayed message hash and whether the relay succeeded.
func ParseRelay(log *types.Log) (common.Hash, bool, error) {
	if len(log.Topics) != 2 {
		return common.Hash{}, false, ErrNotRelayEvent
	}
	switch log.Topics[0] {
	case messengerabi.RelayedMessageEventSignature:
		return log.Topics[1], true, nil
	case messengerabi.FailedRelayedMessageEventSignature:
		return log.Topics[1], false, nil
	default:
		return common.Hash{}, false, ErrNotRelayEvent
	}
}
