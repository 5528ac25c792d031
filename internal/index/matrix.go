package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// On-disk matrix layout: magic, version, dimension, row count, then
// rows*dim little-endian float32 values. Used both for the raw
// embedding matrix produced by the embed step and for the final
// normalized index.
const (
	matrixMagic   = "VSIM"
	matrixVersion = uint32(1)
)

func writeMatrix(path string, dim int, data []float32) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if _, err := w.WriteString(matrixMagic); err != nil {
		return err
	}
	header := []uint32{matrixVersion, uint32(dim), uint32(len(data) / dim)}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, data); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func readMatrix(path string) (int, []float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	magic := make([]byte, len(matrixMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, nil, fmt.Errorf("%w: reading header of %s: %v", ErrIndexCorrupt, path, err)
	}
	if string(magic) != matrixMagic {
		return 0, nil, fmt.Errorf("%w: %s is not a vector matrix file", ErrIndexCorrupt, path)
	}

	var version, dim, count uint32
	for _, v := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return 0, nil, fmt.Errorf("%w: reading header of %s: %v", ErrIndexCorrupt, path, err)
		}
	}
	if version != matrixVersion {
		return 0, nil, fmt.Errorf("%w: unsupported matrix version %d", ErrIndexCorrupt, version)
	}
	if dim == 0 || count == 0 {
		return 0, nil, fmt.Errorf("%w: empty matrix in %s", ErrIndexCorrupt, path)
	}

	data := make([]float32, int(dim)*int(count))
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return 0, nil, fmt.Errorf("%w: matrix in %s shorter than header claims: %v", ErrIndexCorrupt, path, err)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return 0, nil, fmt.Errorf("%w: trailing data in %s", ErrIndexCorrupt, path)
	}
	return int(dim), data, nil
}

// WriteVectors persists a raw (not yet normalized) embedding matrix.
func WriteVectors(path string, vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors to write")
	}
	dim := len(vectors[0])
	data := make([]float32, 0, len(vectors)*dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), dim)
		}
		data = append(data, vec...)
	}
	return writeMatrix(path, dim, data)
}

// ReadVectors loads a matrix written by WriteVectors.
func ReadVectors(path string) ([][]float32, error) {
	dim, data, err := readMatrix(path)
	if err != nil {
		return nil, err
	}
	rows := len(data) / dim
	vectors := make([][]float32, rows)
	for i := range vectors {
		vectors[i] = data[i*dim : (i+1)*dim]
	}
	return vectors, nil
}
