package protocol

import (
	"fmt"
)

// Frame sentinels
const (
	StartByte = 0xAA
	StopByte  = 0x55
)

// Frame size limits
const (
	// MinRequestSize is START + CMD + STOP + CHECKSUM
	MinRequestSize = 4

	// MinResponseSize is START + STATUS + CHECKSUM + STOP
	MinResponseSize = 4
)

// Request is a decoded host-to-device frame.
type Request struct {
	Command Command
	Payload []byte
	Raw     []byte // Original frame bytes
}

// Response is a decoded device-to-host frame.
type Response struct {
	Payload []byte // Content without the trailing status byte
	Status  Status // Last byte of the frame content
	Raw     []byte // Original frame bytes
}

// Checksum XOR-folds every byte of data.
//
// The XOR fold is a best-effort framing check: it catches single flipped bytes
// but not an even number of flips in the same bit position, and it offers no
// protection against deliberate tampering.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// Encode builds a request frame for cmd.
//
// Frame structure:
//
//	[START][CMD][PAYLOAD...][STOP][CHECKSUM]
//
// CHECKSUM is the XOR of every byte before it, sentinels included, so the XOR of
// a complete request frame is always zero.
func Encode(cmd Command, payload []byte) []byte {
	frame := make([]byte, 0, MinRequestSize+len(payload))
	frame = append(frame, StartByte, byte(cmd))
	frame = append(frame, payload...)
	frame = append(frame, StopByte)
	return append(frame, Checksum(frame))
}

// DecodeRequest validates and splits a request frame produced by Encode.
func DecodeRequest(raw []byte) (*Request, error) {
	if len(raw) < MinRequestSize {
		return nil, NewFramingError(fmt.Sprintf("request too short: %d bytes (minimum %d)", len(raw), MinRequestSize), raw)
	}
	if raw[0] != StartByte {
		return nil, NewFramingError(fmt.Sprintf("invalid start byte: 0x%02x (expected 0x%02x)", raw[0], StartByte), raw)
	}
	if raw[len(raw)-2] != StopByte {
		return nil, NewFramingError(fmt.Sprintf("invalid stop byte: 0x%02x (expected 0x%02x)", raw[len(raw)-2], StopByte), raw)
	}

	transmitted := raw[len(raw)-1]
	if computed := Checksum(raw[:len(raw)-1]); computed != transmitted {
		return nil, NewChecksumError(computed, transmitted, raw)
	}

	return &Request{
		Command: Command(raw[1]),
		Payload: raw[2 : len(raw)-2],
		Raw:     raw,
	}, nil
}

// EncodeResponse builds a response frame the way the device does.
//
// Frame structure:
//
//	[START][PAYLOAD...][STATUS][CHECKSUM][STOP]
//
// CHECKSUM covers PAYLOAD and STATUS only.
func EncodeResponse(payload []byte, status Status) []byte {
	frame := make([]byte, 0, MinResponseSize+len(payload))
	frame = append(frame, StartByte)
	frame = append(frame, payload...)
	frame = append(frame, byte(status))
	frame = append(frame, Checksum(frame[1:]))
	return append(frame, StopByte)
}

// Decode validates a response frame and splits its content into payload and
// trailing status byte.
func Decode(raw []byte) (*Response, error) {
	if len(raw) < MinResponseSize {
		return nil, NewFramingError(fmt.Sprintf("incomplete message: %d bytes (minimum %d)", len(raw), MinResponseSize), raw)
	}
	if raw[0] != StartByte {
		return nil, NewFramingError(fmt.Sprintf("invalid start byte: 0x%02x (expected 0x%02x)", raw[0], StartByte), raw)
	}
	if raw[len(raw)-1] != StopByte {
		return nil, NewFramingError(fmt.Sprintf("invalid stop byte: 0x%02x (expected 0x%02x)", raw[len(raw)-1], StopByte), raw)
	}

	content := raw[1 : len(raw)-2]
	transmitted := raw[len(raw)-2]
	if computed := Checksum(content); computed != transmitted {
		return nil, NewChecksumError(computed, transmitted, raw)
	}

	return &Response{
		Payload: content[:len(content)-1],
		Status:  Status(content[len(content)-1]),
		Raw:     raw,
	}, nil
}

// String returns a debug representation of the request
func (r *Request) String() string {
	return fmt.Sprintf("Request{cmd=%s, payload=%d bytes}", r.Command, len(r.Payload))
}

// String returns a debug representation of the response
func (r *Response) String() string {
	return fmt.Sprintf("Response{status=%s, payload=%d bytes}", r.Status, len(r.Payload))
}
