package speech

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// 解压后的最大长度，防止异常包占满内存
const maxDecompressedSize = 8 << 20

// CompressPayload 压缩payload
func CompressPayload(data []byte, method CompressionMethod) ([]byte, error) {
	switch method {
	case NoCompression:
		return data, nil
	case GzipCompression:
		var buf bytes.Buffer
		writer := gzip.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			writer.Close()
			return nil, fmt.Errorf("gzip write failed: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("gzip close failed: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", method)
	}
}

// DecompressPayload 解压缩payload
func DecompressPayload(data []byte, method CompressionMethod) ([]byte, error) {
	switch method {
	case NoCompression:
		return data, nil
	case GzipCompression:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader creation failed: %w", err)
		}
		defer reader.Close()
		out, err := io.ReadAll(io.LimitReader(reader, maxDecompressedSize+1))
		if err != nil {
			return nil, fmt.Errorf("gzip read failed: %w", err)
		}
		if len(out) > maxDecompressedSize {
			return nil, fmt.Errorf("payload exceeds %d bytes", maxDecompressedSize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", method)
	}
}
