package realtime

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// PacketType classifies a decoded Engine.IO / Socket.IO text frame.
type PacketType int

const (
	PacketUnknown PacketType = iota
	PacketOpen
	PacketClose
	PacketPing
	PacketPong
	PacketConnect
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
)

func (t PacketType) String() string {
	switch t {
	case PacketOpen:
		return "open"
	case PacketClose:
		return "close"
	case PacketPing:
		return "ping"
	case PacketPong:
		return "pong"
	case PacketConnect:
		return "connect"
	case PacketDisconnect:
		return "disconnect"
	case PacketEvent:
		return "event"
	case PacketAck:
		return "ack"
	case PacketConnectError:
		return "connect_error"
	default:
		return "unknown"
	}
}

// Engine.IO v4 packet prefixes.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
)

// Socket.IO v5 packet prefixes, carried inside an engine message.
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketAck          = '3'
	socketConnectError = '4'
)

var (
	pongFrame = []byte{enginePong}

	errEmptyFrame = errors.New("realtime: empty frame")
)

// Packet is a decoded text frame. Event and Args are set for event packets; Data holds
// the raw JSON body of open, connect and connect_error packets.
type Packet struct {
	Type      PacketType
	Namespace string
	AckID     string
	Event     string
	Args      []json.RawMessage
	Data      json.RawMessage
}

// Payload returns the first event argument, or nil when the event carried none.
func (p Packet) Payload() json.RawMessage {
	if len(p.Args) == 0 {
		return nil
	}
	return p.Args[0]
}

// Handshake is the body of the Engine.IO open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// Heartbeat returns how long the connection may stay silent before it is considered lost.
func (h Handshake) Heartbeat(fallback time.Duration) time.Duration {
	total := time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
	if total <= 0 {
		return fallback
	}
	return total
}

// DecodeHandshake parses the open packet body.
func DecodeHandshake(p Packet) (Handshake, error) {
	var hs Handshake
	if p.Type != PacketOpen {
		return hs, fmt.Errorf("realtime: expected open packet, got %s", p.Type)
	}
	if len(p.Data) == 0 {
		return hs, nil
	}
	if err := json.Unmarshal(p.Data, &hs); err != nil {
		return hs, fmt.Errorf("realtime: decode handshake: %w", err)
	}
	return hs, nil
}

// DecodePacket parses a single text frame.
func DecodePacket(frame []byte) (Packet, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return Packet{}, errEmptyFrame
	}
	body := frame[1:]
	switch frame[0] {
	case engineOpen:
		return Packet{Type: PacketOpen, Data: json.RawMessage(body)}, nil
	case engineClose:
		return Packet{Type: PacketClose}, nil
	case enginePing:
		return Packet{Type: PacketPing}, nil
	case enginePong:
		return Packet{Type: PacketPong}, nil
	case engineMessage:
		return decodeSocketPacket(body)
	default:
		return Packet{}, fmt.Errorf("realtime: unknown engine packet %q", frame[0])
	}
}

func decodeSocketPacket(body []byte) (Packet, error) {
	if len(body) == 0 {
		return Packet{}, errors.New("realtime: empty socket packet")
	}
	var pkt Packet
	switch body[0] {
	case socketConnect:
		pkt.Type = PacketConnect
	case socketDisconnect:
		pkt.Type = PacketDisconnect
	case socketEvent:
		pkt.Type = PacketEvent
	case socketAck:
		pkt.Type = PacketAck
	case socketConnectError:
		pkt.Type = PacketConnectError
	default:
		return Packet{}, fmt.Errorf("realtime: unknown socket packet %q", body[0])
	}
	rest := body[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			pkt.Namespace = string(rest)
			rest = nil
		} else {
			pkt.Namespace = string(rest[:end])
			rest = rest[end+1:]
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	pkt.AckID = string(rest[:digits])
	rest = rest[digits:]

	switch pkt.Type {
	case PacketEvent, PacketAck:
		if len(rest) == 0 {
			return Packet{}, errors.New("realtime: event packet without arguments")
		}
		var args []json.RawMessage
		if err := json.Unmarshal(rest, &args); err != nil {
			return Packet{}, fmt.Errorf("realtime: decode event arguments: %w", err)
		}
		if pkt.Type == PacketEvent {
			if len(args) == 0 {
				return Packet{}, errors.New("realtime: event packet without name")
			}
			if err := json.Unmarshal(args[0], &pkt.Event); err != nil {
				return Packet{}, fmt.Errorf("realtime: decode event name: %w", err)
			}
			args = args[1:]
		}
		pkt.Args = args
	default:
		if len(rest) > 0 {
			pkt.Data = json.RawMessage(rest)
		}
	}
	return pkt, nil
}

// EncodeConnect builds the namespace connect frame.
func EncodeConnect(namespace string) []byte {
	return []byte(string(engineMessage) + string(socketConnect) + namespacePrefix(namespace))
}

// EncodeEvent builds an event frame. A nil payload emits the event name alone.
func EncodeEvent(namespace, event string, payload any) ([]byte, error) {
	if strings.TrimSpace(event) == "" {
		return nil, errors.New("realtime: event name required")
	}
	args := []any{event}
	if payload != nil {
		args = append(args, payload)
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("realtime: encode event %q: %w", event, err)
	}
	frame := make([]byte, 0, len(encoded)+len(namespace)+3)
	frame = append(frame, engineMessage, socketEvent)
	frame = append(frame, namespacePrefix(namespace)...)
	frame = append(frame, encoded...)
	return frame, nil
}

func namespacePrefix(namespace string) string {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" || namespace == "/" {
		return ""
	}
	if !strings.HasPrefix(namespace, "/") {
		namespace = "/" + namespace
	}
	return namespace + ","
}
