// Package compress provides compression and decompression codecs for the
// dictionary snapshot cache (cache package).
//
// A snapshot is a serialized dict.Dictionary: mostly repetitive ASCII
// (variable names, labels, formats), so general-purpose compression is
// effective without any domain-specific encoding step.
//
// # Supported algorithms
//
//   - None (format.CompressionNone): no compression; payloads pass through
//     unchanged.
//   - Zstd (format.CompressionZstd): best ratio.
//   - S2 (format.CompressionS2): Snappy-family, favors decompression speed.
//   - LZ4 (format.CompressionLZ4): fastest decompression.
//
// A cache.Cache uses the one algorithm its caller passes to cache.New for
// every snapshot it stores.
//
// # Architecture
//
//	type Compressor interface {
//	    Compress(data []byte) ([]byte, error)
//	}
//
//	type Decompressor interface {
//	    Decompress(data []byte) ([]byte, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	}
//
// CreateCodec and GetCodec look up a Codec by format.CompressionType; the
// cache package stores the type alongside each snapshot so it can pick the
// matching decompressor on read without the caller specifying it again.
package compress
