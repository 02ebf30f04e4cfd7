package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendStringSlice(b []byte, num protowire.Number, vs []string) []byte {
	for _, v := range vs {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

// fieldVisitor is called once per top-level field of a decoded message. v
// holds the raw bytes for BytesType fields (nil otherwise); scalar holds
// the decoded varint for VarintType fields (0 otherwise).
type fieldVisitor func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error

// forEachField walks data's top-level fields, dispatching each to visit.
// Unknown field numbers are skipped, matching protobuf's forward-
// compatibility rule.
func forEachField(data []byte, visit fieldVisitor) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("invalid field tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			val, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("invalid varint field: %w", protowire.ParseError(n))
			}
			data = data[n:]
			if err := visit(num, typ, nil, val); err != nil {
				return err
			}
		case protowire.BytesType:
			val, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("invalid bytes field: %w", protowire.ParseError(n))
			}
			data = data[n:]
			if err := visit(num, typ, val, 0); err != nil {
				return err
			}
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return fmt.Errorf("invalid fixed32 field: %w", protowire.ParseError(n))
			}
			data = data[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return fmt.Errorf("invalid fixed64 field: %w", protowire.ParseError(n))
			}
			data = data[n:]
		default:
			return fmt.Errorf("unsupported wire type %v", typ)
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed message from r: a 4-byte
// little-endian length followed by exactly that many bytes. An EOF while
// reading the length prefix is reported via io.EOF (the caller's cue to
// terminate cleanly); any other short read is a fatal error.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("reading frame length: %w", io.ErrUnexpectedEOF)
		}
		return nil, err
	}

	size := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			// End of input right after a length prefix is a truncated
			// message, not a clean end at a frame boundary.
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading frame body: %w", err)
	}
	return body, nil
}

// WriteFrame writes one length-prefixed message to w and flushes it.
func WriteFrame(w *bufio.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	return w.Flush()
}
