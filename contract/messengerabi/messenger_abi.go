package messengerabi

//nolint:golint
import (
	_ "embed"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/omni/messenger-watcher/contract/abi"
)

//go:embed messenger.json
var crossDomainMessengerJSONABI string

const (
	SentMessage          = "event SentMessage(address indexed target, address sender, bytes message, uint256 messageNonce, uint256 gasLimit)"
	RelayedMessage       = "event RelayedMessage(bytes32 indexed msgHash)"
	FailedRelayedMessage = "event FailedRelayedMessage(bytes32 indexed msgHash)"

	RelayMessageMethod = "relayMessage"
)

var (
	CrossDomainMessengerABI = abi.MustReadABI(crossDomainMessengerJSONABI)

	SentMessageEventSignature          = crypto.Keccak256Hash([]byte("SentMessage(address,address,bytes,uint256,uint256)"))
	RelayedMessageEventSignature       = crypto.Keccak256Hash([]byte("RelayedMessage(bytes32)"))
	FailedRelayedMessageEventSignature = crypto.Keccak256Hash([]byte("FailedRelayedMessage(bytes32)"))
)
