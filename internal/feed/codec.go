package feed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire tags. Client messages use the low range, server messages set the top bit.
const (
	tagSubscribe   byte = 0x01
	tagClientPing  byte = 0x02
	tagClientPong  byte = 0x03
	tagBlockUpdate byte = 0x81
	tagServerPing  byte = 0x82
	tagServerPong  byte = 0x83
)

const blockUpdateSize = 8 + 8 + 32 + 8

var (
	ErrTruncated       = errors.New("truncated message")
	ErrTokenTooLong    = errors.New("token too long")
	ErrUnknownRequest  = errors.New("unknown request type")
	ErrUnexpectedBytes = errors.New("unexpected trailing bytes")
)

// EncodeRequest serializes a client message.
func EncodeRequest(req Request) ([]byte, error) {
	switch r := req.(type) {
	case SubscribeRequest:
		if len(r.Token) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %d bytes", ErrTokenTooLong, len(r.Token))
		}
		buf := make([]byte, 0, 5+len(r.Token))
		buf = append(buf, tagSubscribe, byte(r.Commitment), byte(r.Filter))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(r.Token)))
		return append(buf, r.Token...), nil
	case Ping:
		return binary.LittleEndian.AppendUint32([]byte{tagClientPing}, r.ID), nil
	case Pong:
		return binary.LittleEndian.AppendUint32([]byte{tagClientPong}, r.ID), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownRequest, req)
	}
}

// DecodeRequest parses a client message. Servers use it.
func DecodeRequest(payload []byte) (Request, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrTruncated)
	}
	body := payload[1:]
	switch payload[0] {
	case tagSubscribe:
		if len(body) < 4 {
			return nil, fmt.Errorf("%w: subscribe header", ErrTruncated)
		}
		n := int(binary.LittleEndian.Uint16(body[2:4]))
		if len(body[4:]) < n {
			return nil, fmt.Errorf("%w: subscribe token", ErrTruncated)
		}
		if len(body[4:]) > n {
			return nil, ErrUnexpectedBytes
		}
		return SubscribeRequest{
			Commitment: Commitment(body[0]),
			Filter:     Filter(body[1]),
			Token:      string(body[4 : 4+n]),
		}, nil
	case tagClientPing:
		id, err := decodeID(body)
		if err != nil {
			return nil, err
		}
		return Ping{ID: id}, nil
	case tagClientPong:
		id, err := decodeID(body)
		if err != nil {
			return nil, err
		}
		return Pong{ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: tag 0x%02x", ErrUnknownRequest, payload[0])
	}
}

// EncodeUpdate serializes a server message. Unrecognized cannot be encoded.
func EncodeUpdate(u Update) ([]byte, error) {
	switch m := u.(type) {
	case BlockUpdate:
		buf := make([]byte, 0, 1+blockUpdateSize)
		buf = append(buf, tagBlockUpdate)
		buf = binary.LittleEndian.AppendUint64(buf, m.Slot)
		buf = binary.LittleEndian.AppendUint64(buf, m.ParentSlot)
		buf = append(buf, m.Hash[:]...)
		return binary.LittleEndian.AppendUint64(buf, uint64(m.BlockTime)), nil
	case Ping:
		return binary.LittleEndian.AppendUint32([]byte{tagServerPing}, m.ID), nil
	case Pong:
		return binary.LittleEndian.AppendUint32([]byte{tagServerPong}, m.ID), nil
	default:
		return nil, fmt.Errorf("cannot encode update %T", u)
	}
}

// DecodeUpdate parses a server message. An empty payload or an unknown tag
// yields Unrecognized rather than an error; a known tag with a short body is
// an error.
func DecodeUpdate(payload []byte) (Update, error) {
	if len(payload) == 0 {
		return Unrecognized{}, nil
	}
	body := payload[1:]
	switch payload[0] {
	case tagBlockUpdate:
		if len(body) < blockUpdateSize {
			return nil, fmt.Errorf("%w: block update has %d of %d bytes", ErrTruncated, len(body), blockUpdateSize)
		}
		b := BlockUpdate{
			Slot:       binary.LittleEndian.Uint64(body[0:8]),
			ParentSlot: binary.LittleEndian.Uint64(body[8:16]),
			BlockTime:  int64(binary.LittleEndian.Uint64(body[48:56])),
		}
		copy(b.Hash[:], body[16:48])
		return b, nil
	case tagServerPing:
		id, err := decodeID(body)
		if err != nil {
			return nil, err
		}
		return Ping{ID: id}, nil
	case tagServerPong:
		id, err := decodeID(body)
		if err != nil {
			return nil, err
		}
		return Pong{ID: id}, nil
	default:
		return Unrecognized{Tag: payload[0]}, nil
	}
}

func decodeID(body []byte) (uint32, error) {
	if len(body) < 4 {
		return 0, fmt.Errorf("%w: id has %d of 4 bytes", ErrTruncated, len(body))
	}
	return binary.LittleEndian.Uint32(body), nil
}
