package proxy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
	"unicode/utf8"
)

// maxUTFLength is the largest amount of bytes a string written with writeUTF
// may occupy. The length prefix is an unsigned short.
const maxUTFLength = math.MaxUint16

// dataWriter writes values in the big-endian layout of java.io.DataOutput.
type dataWriter struct {
	buf bytes.Buffer
}

func (w *dataWriter) writeBool(v bool) {
	if v {
		w.buf.WriteByte(1)
		return
	}
	w.buf.WriteByte(0)
}

func (w *dataWriter) writeByte(v byte) {
	w.buf.WriteByte(v)
}

func (w *dataWriter) writeShort(v int16) {
	w.buf.Write(binary.BigEndian.AppendUint16(nil, uint16(v)))
}

func (w *dataWriter) writeInt(v int32) {
	w.buf.Write(binary.BigEndian.AppendUint32(nil, uint32(v)))
}

func (w *dataWriter) writeLong(v int64) {
	w.buf.Write(binary.BigEndian.AppendUint64(nil, uint64(v)))
}

func (w *dataWriter) writeFloat(v float32) {
	w.writeInt(int32(math.Float32bits(v)))
}

func (w *dataWriter) writeDouble(v float64) {
	w.writeLong(int64(math.Float64bits(v)))
}

func (w *dataWriter) write(b []byte) {
	w.buf.Write(b)
}

// writeUTF writes s as an unsigned short byte length followed by the modified
// UTF-8 encoding of s.
func (w *dataWriter) writeUTF(s string) error {
	encoded := encodeModifiedUTF8(s)
	if len(encoded) > maxUTFLength {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(encoded))
	}
	w.buf.Write(binary.BigEndian.AppendUint16(nil, uint16(len(encoded))))
	w.buf.Write(encoded)
	return nil
}

func (w *dataWriter) bytes() []byte {
	return w.buf.Bytes()
}

func (w *dataWriter) len() int {
	return w.buf.Len()
}

// dataReader reads values in the layout produced by dataWriter.
type dataReader struct {
	data []byte
	off  int
}

func newDataReader(data []byte) *dataReader {
	return &dataReader{data: data}
}

func (r *dataReader) next(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.off < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, len(r.data)-r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *dataReader) readBool() (bool, error) {
	b, err := r.next(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *dataReader) readByte() (byte, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *dataReader) readShort() (int16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (r *dataReader) readInt() (int32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *dataReader) readLong() (int64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *dataReader) readFloat() (float32, error) {
	v, err := r.readInt()
	return math.Float32frombits(uint32(v)), err
}

func (r *dataReader) readDouble() (float64, error) {
	v, err := r.readLong()
	return math.Float64frombits(uint64(v)), err
}

func (r *dataReader) readUTF() (string, error) {
	b, err := r.next(2)
	if err != nil {
		return "", err
	}
	encoded, err := r.next(int(binary.BigEndian.Uint16(b)))
	if err != nil {
		return "", err
	}
	return decodeModifiedUTF8(encoded)
}

func (r *dataReader) remaining() int {
	return len(r.data) - r.off
}

// encodeModifiedUTF8 encodes s the way DataOutput.writeUTF does: NUL becomes
// the two byte sequence C0 80 and runes outside the BMP are written as a pair
// of three byte surrogates.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r == 0:
			out = append(out, 0xc0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xc0|byte(r>>6), 0x80|byte(r&0x3f))
		case r < 0x10000:
			out = appendThreeByte(out, r)
		default:
			hi, lo := utf16.EncodeRune(r)
			out = appendThreeByte(appendThreeByte(out, hi), lo)
		}
	}
	return out
}

func appendThreeByte(out []byte, r rune) []byte {
	return append(out, 0xe0|byte(r>>12), 0x80|byte((r>>6)&0x3f), 0x80|byte(r&0x3f))
}

func decodeModifiedUTF8(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || b[i+1]&0xc0 != 0x80 {
				return "", fmt.Errorf("%w: bad two byte sequence at %d", ErrMalformed, i)
			}
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0:
			if i+2 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 {
				return "", fmt.Errorf("%w: bad three byte sequence at %d", ErrMalformed, i)
			}
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			return "", fmt.Errorf("%w: unexpected byte %#x at %d", ErrMalformed, c, i)
		}
	}
	runes := utf16.Decode(units)
	buf := make([]byte, 0, len(units))
	for _, r := range runes {
		buf = utf8.AppendRune(buf, r)
	}
	return string(buf), nil
}
