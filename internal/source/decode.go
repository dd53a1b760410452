package source

import (
	"errors"
	"fmt"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/ledger"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/model"
)

// SenderUnknown is reported when the sender topic carries an address kind we
// don't recognize. New address kinds appear as the protocol evolves, so this
// is an expected fallback rather than an error.
const SenderUnknown = "unknown"

// decodeEvent builds a ChatMessage from a raw contract event. The error
// return marks the single event as malformed; callers skip it and keep going.
func decodeEvent(ev ledger.RawEvent) (model.ChatMessage, error) {
	if len(ev.Topic) == 0 {
		return model.ChatMessage{}, errors.New("empty topic list")
	}
	sender, err := senderFromTopic(ev.Topic[0])
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("sender topic: %w", err)
	}
	content, err := textFromValue(ev.Value)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("value: %w", err)
	}
	ts, err := parseTimeFlexible(ev.LedgerClosedAt)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("ledger close time: %w", err)
	}
	return model.ChatMessage{
		ID:        ev.ID,
		Sender:    sender,
		Content:   content,
		Timestamp: ts,
		TxHash:    ev.TxHash,
	}, nil
}

func senderFromTopic(topicB64 string) (string, error) {
	var sv xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(topicB64, &sv); err != nil {
		return "", fmt.Errorf("unmarshal topic: %w", err)
	}
	addr, ok := sv.GetAddress()
	if !ok {
		return SenderUnknown, nil
	}
	return senderFromAddress(addr), nil
}

func senderFromAddress(addr xdr.ScAddress) string {
	switch addr.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		if addr.AccountId == nil {
			return SenderUnknown
		}
		return addr.AccountId.Address()
	case xdr.ScAddressTypeScAddressTypeContract:
		if addr.ContractId == nil {
			return SenderUnknown
		}
		s, err := strkey.Encode(strkey.VersionByteContract, addr.ContractId[:])
		if err != nil {
			return SenderUnknown
		}
		return s
	default:
		// Keep the default arm: muxed accounts, claimable balances and
		// whatever comes next all surface as "unknown".
		return SenderUnknown
	}
}

func textFromValue(valueB64 string) (string, error) {
	var sv xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(valueB64, &sv); err != nil {
		return "", fmt.Errorf("unmarshal value: %w", err)
	}
	switch sv.Type {
	case xdr.ScValTypeScvString:
		return string(*sv.Str), nil
	case xdr.ScValTypeScvSymbol:
		return string(*sv.Sym), nil
	case xdr.ScValTypeScvBytes:
		return string(*sv.Bytes), nil
	default:
		return "", fmt.Errorf("unsupported payload type %d", sv.Type)
	}
}
