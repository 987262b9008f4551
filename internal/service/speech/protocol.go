package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion 二进制协议版本
const ProtocolVersion = 0b0001

// MessageType 消息类型
type MessageType uint8

const (
	FullClientRequest  MessageType = 0b0001
	AudioOnlyRequest   MessageType = 0b0010
	FullServerResponse MessageType = 0b1001
	ServerAck          MessageType = 0b1011
	ErrorMessage       MessageType = 0b1111
)

// MessageFlags describes the optional sequence field.
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	NegativeSequenceNumber MessageFlags = 0b0011
)

// SerializationMethod 序列化方法
type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

// CompressionMethod 压缩方法
type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// Header is the fixed 4-byte frame header.
type Header struct {
	MessageType         MessageType
	MessageFlags        MessageFlags
	SerializationMethod SerializationMethod
	CompressionMethod   CompressionMethod
}

// Message is one binary websocket frame.
type Message struct {
	Header    Header
	Sequence  int32
	ErrorCode uint32
	Payload   []byte
}

func (m *Message) hasSequence() bool {
	switch m.Header.MessageFlags {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		return true
	default:
		return false
	}
}

// IsLastPacket 判断是否为最后一包
func (m *Message) IsLastPacket() bool {
	switch m.Header.MessageFlags {
	case LastPacketNoSequence, NegativeSequenceNumber:
		return true
	default:
		return false
	}
}

// EncodeMessage 编码完整消息
func EncodeMessage(msg *Message) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 12+len(msg.Payload)))
	h := msg.Header
	buf.WriteByte(ProtocolVersion<<4 | 0b0001)
	buf.WriteByte(uint8(h.MessageType)<<4 | uint8(h.MessageFlags))
	buf.WriteByte(uint8(h.SerializationMethod)<<4 | uint8(h.CompressionMethod))
	buf.WriteByte(0)

	word := make([]byte, 4)
	if msg.hasSequence() {
		binary.BigEndian.PutUint32(word, uint32(msg.Sequence))
		buf.Write(word)
	}
	if h.MessageType == ErrorMessage {
		binary.BigEndian.PutUint32(word, msg.ErrorCode)
		buf.Write(word)
	}
	binary.BigEndian.PutUint32(word, uint32(len(msg.Payload)))
	buf.Write(word)
	buf.Write(msg.Payload)
	return buf.Bytes()
}

// DecodeMessage 解码完整消息
func DecodeMessage(reader io.Reader) (*Message, error) {
	head := make([]byte, 4)
	if _, err := io.ReadFull(reader, head); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if version := head[0] >> 4; version != ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}

	msg := &Message{Header: Header{
		MessageType:         MessageType(head[1] >> 4),
		MessageFlags:        MessageFlags(head[1] & 0x0F),
		SerializationMethod: SerializationMethod(head[2] >> 4),
		CompressionMethod:   CompressionMethod(head[2] & 0x0F),
	}}

	// 跳过扩展头
	if extra := int(head[0]&0x0F)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, reader, int64(extra)); err != nil {
			return nil, fmt.Errorf("read extended header: %w", err)
		}
	}

	var word uint32
	if msg.hasSequence() {
		if err := binary.Read(reader, binary.BigEndian, &word); err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
		msg.Sequence = int32(word)
	}
	if msg.Header.MessageType == ErrorMessage {
		if err := binary.Read(reader, binary.BigEndian, &msg.ErrorCode); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
	}

	var size uint32
	if err := binary.Read(reader, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	if size > 0 {
		msg.Payload = make([]byte, size)
		if _, err := io.ReadFull(reader, msg.Payload); err != nil {
			return nil, fmt.Errorf("read payload (expected %d bytes): %w", size, err)
		}
	}
	return msg, nil
}

// NewFullClientRequest wraps the JSON session parameters.
func NewFullClientRequest(payload []byte, compression CompressionMethod) *Message {
	return &Message{
		Header: Header{
			MessageType:         FullClientRequest,
			MessageFlags:        NoSequenceNumber,
			SerializationMethod: JSONSerialization,
			CompressionMethod:   compression,
		},
		Payload: payload,
	}
}

// NewAudioOnlyRequest wraps one audio packet. The last packet carries the
// negated sequence number.
func NewAudioOnlyRequest(audio []byte, sequence int32, last bool, compression CompressionMethod) *Message {
	flags := PositiveSequenceNumber
	if last {
		flags = NegativeSequenceNumber
		sequence = -sequence
	}
	return &Message{
		Header: Header{
			MessageType:         AudioOnlyRequest,
			MessageFlags:        flags,
			SerializationMethod: NoSerialization,
			CompressionMethod:   compression,
		},
		Sequence: sequence,
		Payload:  audio,
	}
}
