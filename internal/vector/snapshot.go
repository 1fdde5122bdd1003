package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// snapshot is the serialized form of an index. Format (little endian): dimension (4), n (4),
// then per entry: textLen (4), text bytes, vector (dimension*4 bytes). Entry order is id order.
type snapshot struct {
	dimensions int
	texts      []string
	vectors    [][]float32
}

func writeSnapshot(path string, s snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := encodeSnapshot(w, s); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func encodeSnapshot(w io.Writer, s snapshot) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(s.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s.texts))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, text := range s.texts {
		b := []byte(text)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
			return fmt.Errorf("write text len: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(s.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// readSnapshot decodes path. found is false when the file does not exist.
func readSnapshot(path string, dimensions int) (s snapshot, found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot{}, false, nil
		}
		return snapshot{}, false, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	s, err = decodeSnapshot(bufio.NewReader(f), dimensions)
	return s, err == nil, err
}

func decodeSnapshot(r io.Reader, dimensions int) (snapshot, error) {
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return snapshot{}, fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != dimensions {
		return snapshot{}, fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return snapshot{}, fmt.Errorf("read count: %w", err)
	}
	s := snapshot{
		dimensions: dimensions,
		texts:      make([]string, 0, n),
		vectors:    make([][]float32, 0, n),
	}
	buf := make([]byte, dimensions*4)
	for i := uint32(0); i < n; i++ {
		var textLen uint32
		if err := binary.Read(r, binary.LittleEndian, &textLen); err != nil {
			return snapshot{}, fmt.Errorf("read text len: %w", err)
		}
		text := make([]byte, textLen)
		if _, err := io.ReadFull(r, text); err != nil {
			return snapshot{}, fmt.Errorf("read text: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return snapshot{}, fmt.Errorf("read vector: %w", err)
		}
		s.texts = append(s.texts, string(text))
		s.vectors = append(s.vectors, bytesToFloat32Slice(buf))
	}
	return s, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
