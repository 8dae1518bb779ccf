package archive

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// StructuredWriter writes the primitive fields of the format and tracks how
// many bytes went out.
type StructuredWriter struct {
	w      io.Writer
	offset uint64
	err    error
}

func NewStructuredWriter(w io.Writer) *StructuredWriter {
	return &StructuredWriter{w: w}
}

// Write writes p unchanged. After the first failure every later write is a
// no-op returning the same error.
func (sw *StructuredWriter) Write(p []byte) (int, error) {
	if sw.err != nil {
		return 0, sw.err
	}
	n, err := sw.w.Write(p)
	sw.offset += uint64(n)
	sw.err = err
	return n, err
}

func (sw *StructuredWriter) Offset() uint64 {
	return sw.offset
}

// Err returns the first write error, so a run of writes can be checked once.
func (sw *StructuredWriter) Err() error {
	return sw.err
}

func (sw *StructuredWriter) WriteVarint(value int64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], value)
	_, err := sw.Write(buf[:n])
	return err
}

func (sw *StructuredWriter) WriteUvarint(value uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], value)
	_, err := sw.Write(buf[:n])
	return err
}

// WriteBytes writes data prefixed with its length as a uvarint.
func (sw *StructuredWriter) WriteBytes(data []byte) error {
	if err := sw.WriteUvarint(uint64(len(data))); err != nil {
		return err
	}
	_, err := sw.Write(data)
	return err
}

func (sw *StructuredWriter) WriteString(s string) error {
	return sw.WriteBytes([]byte(s))
}

func (sw *StructuredWriter) WriteUInt64(value uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	_, err := sw.Write(buf[:])
	return err
}

func (sw *StructuredWriter) WriteUint8(value uint8) error {
	_, err := sw.Write([]byte{value})
	return err
}

// StructuredReader reads what StructuredWriter writes. Length prefixes are
// never trusted for allocation: payloads grow only as bytes actually arrive.
type StructuredReader struct {
	r      *bufio.Reader
	offset uint64
}

func NewStructuredReader(r io.Reader) *StructuredReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &StructuredReader{r: br}
}

func (sr *StructuredReader) Read(p []byte) (int, error) {
	n, err := sr.r.Read(p)
	sr.offset += uint64(n)
	return n, err
}

// ReadByte is required for binary.ReadUvarint.
func (sr *StructuredReader) ReadByte() (byte, error) {
	b, err := sr.r.ReadByte()
	if err == nil {
		sr.offset++
	}
	return b, err
}

func (sr *StructuredReader) Offset() uint64 {
	return sr.offset
}

// AtEOF reports whether the input is exhausted.
func (sr *StructuredReader) AtEOF() bool {
	_, err := sr.r.Peek(1)
	return err == io.EOF
}

func (sr *StructuredReader) ReadVarint() (int64, error) {
	v, err := binary.ReadVarint(sr)
	return v, unexpectedEOF(err)
}

func (sr *StructuredReader) ReadUvarint() (uint64, error) {
	v, err := binary.ReadUvarint(sr)
	return v, unexpectedEOF(err)
}

// ReadN reads exactly n bytes.
func (sr *StructuredReader) ReadN(n uint64) ([]byte, error) {
	var buf bytes.Buffer
	read, err := buf.ReadFrom(io.LimitReader(sr, int64(min(n, 1<<62))))
	if err != nil {
		return nil, err
	}
	if uint64(read) < n {
		return nil, fmt.Errorf("%w: read %d of %d bytes", io.ErrUnexpectedEOF, read, n)
	}
	return buf.Bytes(), nil
}

// ReadBytes reads a byte slice prefixed with its length as a uvarint.
func (sr *StructuredReader) ReadBytes() ([]byte, error) {
	length, err := sr.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return sr.ReadN(length)
}

func (sr *StructuredReader) ReadString() (string, error) {
	data, err := sr.ReadBytes()
	return string(data), err
}

func (sr *StructuredReader) ReadUInt64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(sr, buf[:]); err != nil {
		return 0, unexpectedEOF(err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func (sr *StructuredReader) ReadUint8() (uint8, error) {
	b, err := sr.ReadByte()
	return b, unexpectedEOF(err)
}

// unexpectedEOF turns a clean EOF inside a field into a truncation.
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
