// Package protocol implements the MP1 device serial framing.
//
// This package builds request frames, validates response frames, and defines the
// closed sets of opcodes, status codes, operating modes and indicator settings
// used by the device. It performs no I/O; see the transport and device packages
// for that.
//
// # Frame Format
//
// Requests sent to the device:
//
//	[0xAA][CMD][PAYLOAD...][0x55][CHECKSUM]
//
// CHECKSUM is the XOR of every byte before it, so a valid request XORs to zero.
//
// Responses sent by the device:
//
//	[0xAA][PAYLOAD...][STATUS][CHECKSUM][0x55]
//
// CHECKSUM is the XOR of PAYLOAD and STATUS. The STATUS byte is always the last
// content byte and is returned to the caller as data, never as an error.
//
// All multi-byte integers are little-endian.
//
// # Usage Example
//
//	frame := protocol.Encode(protocol.CmdReadBank, protocol.Uint8(0x00))
//	// frame == AA 10 00 55 EF
//
//	resp, err := protocol.Decode(raw)
//	if err != nil {
//	    // framing or checksum error
//	}
//	if resp.Status != protocol.StatusOK {
//	    fmt.Println(resp.Status.Description())
//	}
//
// # Error Handling
//
// Four conditions are protocol errors, all reported as *Error with an
// ErrorType: framing (bad sentinels or truncated content), checksum mismatch,
// read timeout and transport I/O failure. The XOR checksum is a best-effort
// framing check, not an integrity or security control.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package protocol
