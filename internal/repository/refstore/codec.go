package refstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Binary layout, little-endian:
//
//	vectors: uint32 count | uint32 dim | count*dim float32
//	weights: uint32 count | count float64
const headerSize = 4

func encodeVectors(vectors [][]float32) []byte {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	buf := make([]byte, 2*headerSize+len(vectors)*dim*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(dim))
	off := 2 * headerSize
	for _, v := range vectors {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
			off += 4
		}
	}
	return buf
}

func decodeVectors(data []byte) ([][]float32, error) {
	if len(data) < 2*headerSize {
		return nil, fmt.Errorf("vectors: short header (%d bytes)", len(data))
	}
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	dim := int(binary.LittleEndian.Uint32(data[4:8]))
	body := data[2*headerSize:]
	if len(body) != count*dim*4 {
		return nil, fmt.Errorf("vectors: expected %d bytes for %dx%d, got %d", count*dim*4, count, dim, len(body))
	}
	vectors := make([][]float32, count)
	off := 0
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(body[off : off+4]))
			off += 4
		}
		vectors[i] = v
	}
	return vectors, nil
}

func encodeWeights(weights []float64) []byte {
	buf := make([]byte, headerSize+len(weights)*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(weights)))
	off := headerSize
	for _, w := range weights {
		binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(w))
		off += 8
	}
	return buf
}

func decodeWeights(data []byte) ([]float64, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("weights: short header (%d bytes)", len(data))
	}
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	body := data[headerSize:]
	if len(body) != count*8 {
		return nil, fmt.Errorf("weights: expected %d bytes for %d weights, got %d", count*8, count, len(body))
	}
	weights := make([]float64, count)
	for i := range weights {
		weights[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[i*8 : (i+1)*8]))
	}
	return weights, nil
}
