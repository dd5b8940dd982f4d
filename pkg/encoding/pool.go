// Package encoding pools the buffers used to render pages, JSON responses
// and gateway request documents.
package encoding

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"sync"
)

// maxPooledBuffer keeps outlier responses from pinning memory in the pool
const maxPooledBuffer = 64 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// GetBuffer retrieves an empty bytes.Buffer from the pool
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a bytes.Buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// EncodeXML renders v behind the standard XML declaration
func EncodeXML(v interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return copyBytes(buf), nil
}

// EncodeJSON encodes v to JSON with a trailing newline
func EncodeJSON(v interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return copyBytes(buf), nil
}

// the buffer goes back to the pool, so callers get their own slice
func copyBytes(buf *bytes.Buffer) []byte {
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}
