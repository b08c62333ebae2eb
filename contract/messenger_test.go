package contract_test

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/omni/messenger-watcher/contract"
	"github.com/omni/messenger-watcher/contract/messengerabi"
	"github.com/omni/messenger-watcher/watcher/watchertest"
)

var (
	messengerAddr = common.HexToAddress("0x4200000000000000000000000000000000000007")
	otherAddr     = common.HexToAddress("0x4200000000000000000000000000000000000010")
	senderAddr    = common.HexToAddress("0x000000000000000000000000000000000000000a")
	targetAddr    = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func word(b []byte) []byte {
	return common.LeftPadBytes(b, 32)
}

// manualRelayHash hand-encodes relayMessage(target, sender, 0x1234, 7).
func manualRelayHash() common.Hash {
	selector := crypto.Keccak256([]byte("relayMessage(address,address,bytes,uint256)"))[:4]
	var buf bytes.Buffer
	buf.Write(selector)
	buf.Write(word(targetAddr.Bytes()))
	buf.Write(word(senderAddr.Bytes()))
	buf.Write(word([]byte{0x80}))
	buf.Write(word([]byte{7}))
	buf.Write(word([]byte{2}))
	buf.Write(common.RightPadBytes([]byte{0x12, 0x34}, 32))
	return crypto.Keccak256Hash(buf.Bytes())
}

func TestSentMessage_Hash(t *testing.T) {
	t.Parallel()

	m := contract.NewMessenger(messengerAddr)
	log := watchertest.SentMessageLog(messengerAddr, targetAddr, senderAddr, []byte{0x12, 0x34}, 7, 100000)

	msg, err := m.ParseSentMessage(log)
	require.NoError(t, err)
	require.Equal(t, targetAddr, msg.Target)
	require.Equal(t, senderAddr, msg.Sender)
	require.Equal(t, []byte{0x12, 0x34}, msg.Message)
	require.EqualValues(t, 7, msg.Nonce.Int64())
	require.EqualValues(t, 100000, msg.GasLimit.Int64())

	calldata, err := msg.RelayCalldata()
	require.NoError(t, err)
	require.Len(t, calldata, 4+6*32)

	hash, err := msg.Hash()
	require.NoError(t, err)
	require.Equal(t, manualRelayHash(), hash)
}

func TestSentMessage_HashIsDeterministic(t *testing.T) {
	t.Parallel()

	m := contract.NewMessenger(messengerAddr)
	a, err := m.ParseSentMessage(watchertest.SentMessageLog(messengerAddr, targetAddr, senderAddr, []byte("hi"), 1, 1))
	require.NoError(t, err)
	b, err := m.ParseSentMessage(watchertest.SentMessageLog(messengerAddr, targetAddr, senderAddr, []byte("hi"), 1, 2))
	require.NoError(t, err)
	c, err := m.ParseSentMessage(watchertest.SentMessageLog(messengerAddr, targetAddr, senderAddr, []byte("hi"), 2, 1))
	require.NoError(t, err)

	hashA, err := a.Hash()
	require.NoError(t, err)
	hashB, err := b.Hash()
	require.NoError(t, err)
	hashC, err := c.Hash()
	require.NoError(t, err)

	require.Equal(t, hashA, hashB, "gas limit is not part of the hash")
	require.NotEqual(t, hashA, hashC)
}

func TestMessenger_SentMessages(t *testing.T) {
	t.Parallel()

	m := contract.NewMessenger(messengerAddr)

	t.Run("keeps log order and skips foreign logs", func(t *testing.T) {
		t.Parallel()
		receipt := &types.Receipt{Logs: []*types.Log{
			watchertest.SentMessageLog(messengerAddr, targetAddr, senderAddr, []byte{1}, 3, 1),
			watchertest.SentMessageLog(otherAddr, targetAddr, senderAddr, []byte{2}, 4, 1),
			{Address: messengerAddr, Topics: []common.Hash{crypto.Keccak256Hash([]byte("Other()"))}},
			watchertest.RelayLog(messengerAddr, common.HexToHash("0x01"), true),
			watchertest.SentMessageLog(messengerAddr, targetAddr, senderAddr, []byte{3}, 1, 1),
		}}
		msgs, err := m.SentMessages(receipt)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		require.EqualValues(t, 3, msgs[0].Nonce.Int64())
		require.EqualValues(t, 1, msgs[1].Nonce.Int64())
	})

	t.Run("empty receipt", func(t *testing.T) {
		t.Parallel()
		msgs, err := m.SentMessages(&types.Receipt{})
		require.NoError(t, err)
		require.Empty(t, msgs)
	})

	t.Run("malformed log", func(t *testing.T) {
		t.Parallel()
		log := watchertest.SentMessageLog(messengerAddr, targetAddr, senderAddr, []byte{1}, 3, 1)
		log.Data = log.Data[:32]
		_, err := m.SentMessages(&types.Receipt{Logs: []*types.Log{log}})
		require.ErrorIs(t, err, contract.ErrMalformedSentMessage)
	})

	t.Run("missing indexed target", func(t *testing.T) {
		t.Parallel()
		log := watchertest.SentMessageLog(messengerAddr, targetAddr, senderAddr, []byte{1}, 3, 1)
		log.Topics = log.Topics[:1]
		_, err := m.SentMessages(&types.Receipt{Logs: []*types.Log{log}})
		require.ErrorIs(t, err, contract.ErrMalformedSentMessage)
	})
}

func TestParseRelay(t *testing.T) {
	t.Parallel()

	msgHash := common.HexToHash("0xdeadbeef")

	hash, success, err := contract.ParseRelay(watchertest.RelayLog(messengerAddr, msgHash, true))
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, msgHash, hash)

	hash, success, err = contract.ParseRelay(watchertest.RelayLog(messengerAddr, msgHash, false))
	require.NoError(t, err)
	require.False(t, success)
	require.Equal(t, msgHash, hash)

	_, _, err = contract.ParseRelay(&types.Log{Topics: []common.Hash{messengerabi.SentMessageEventSignature, msgHash}})
	require.ErrorIs(t, err, contract.ErrNotRelayEvent)

	_, _, err = contract.ParseRelay(&types.Log{Topics: []common.Hash{messengerabi.RelayedMessageEventSignature}})
	require.ErrorIs(t, err, contract.ErrNotRelayEvent)
}
