package wire

import (
	"fmt"
)

// encode builds a complete message for sender/opcode. File descriptors are
// returned separately, in argument order, for the control message.
func encode(sender uint32, opcode uint16, args ...any) ([]byte, []int, error) {
	buf := make([]byte, headerSize, 64)
	var fds []int

	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
			buf = appendUint32(buf, 0)
		case uint32:
			buf = appendUint32(buf, v)
		case int32:
			buf = appendUint32(buf, uint32(v))
		case Fixed:
			buf = appendUint32(buf, uint32(v))
		case Object:
			buf = appendUint32(buf, uint32(v))
		case string:
			buf = appendString(buf, v)
		case []byte:
			buf = appendArray(buf, v)
		case FD:
			fds = append(fds, int(v))
		case Proxy:
			buf = appendUint32(buf, v.ID())
		default:
			return nil, nil, fmt.Errorf("argument %d: unsupported type %T", i, arg)
		}
	}

	if len(buf) > maxMessageSize {
		return nil, nil, fmt.Errorf("opcode %d on object %d: %w", opcode, sender, ErrMessageTooLarge)
	}
	if len(fds) > maxFDsPerMsg {
		return nil, nil, fmt.Errorf("opcode %d on object %d: too many file descriptors", opcode, sender)
	}

	byteOrder.PutUint32(buf[0:4], sender)
	byteOrder.PutUint32(buf[4:8], uint32(len(buf))<<16|uint32(opcode))
	return buf, fds, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	return byteOrder.AppendUint32(buf, v)
}

func appendString(buf []byte, s string) []byte {
	// Length includes the terminating NUL.
	buf = appendUint32(buf, uint32(len(s)+1))
	buf = append(buf, s...)
	buf = append(buf, 0)
	return pad(buf)
}

func appendArray(buf []byte, b []byte) []byte {
	buf = appendUint32(buf, uint32(len(b)))
	buf = append(buf, b...)
	return pad(buf)
}

func pad(buf []byte) []byte {
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func align4(n int) int {
	return (n + 3) &^ 3
}
