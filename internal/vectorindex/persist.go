package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// graphFormatVersion versions the {name}.hnsw file. Only the matching
// version is accepted on load; an incompatible older version is refused
// rather than silently misread.
const graphFormatVersion uint32 = 1

// graphHeader is everything the {name}.hnsw file stores. The graph's
// adjacency structure itself is not persisted: on Load the graph is
// rebuilt by replaying every live record from the paired .meta file
// through the graph's insertion path (insertWithKey), which reproduces a structurally valid (if not
// byte-identical) HNSW graph and keeps the on-disk format tiny. This is
// the "periodic rebuild on disk" strategy the design notes call out as
// permitted for tombstoned graphs.
type graphHeader struct {
	Version        uint32
	Dimension      uint32
	Metric         uint32
	M              uint32
	EfConstruction uint32
	EfSearch       uint32
	MaxElements    uint32
}

// SaveGraph writes the {name}.hnsw header.
func (idx *Index) SaveGraph(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	h := graphHeader{
		Version:        graphFormatVersion,
		Dimension:      uint32(idx.cfg.Dimension),
		Metric:         uint32(idx.cfg.Metric),
		M:              uint32(idx.cfg.M),
		EfConstruction: uint32(idx.cfg.EfConstruction),
		EfSearch:       uint32(idx.cfg.EfSearch),
		MaxElements:    uint32(idx.cfg.MaxElements),
	}
	return binary.Write(w, binary.LittleEndian, h)
}

// LoadGraphHeader reads and validates the {name}.hnsw header, returning the
// config it encodes.
func LoadGraphHeader(r io.Reader) (Config, error) {
	var h graphHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return Config{}, fmt.Errorf("read graph header: %w", err)
	}
	if h.Version != graphFormatVersion {
		return Config{}, fmt.Errorf("unsupported graph file version %d (want %d)", h.Version, graphFormatVersion)
	}
	return Config{
		Dimension:      int(h.Dimension),
		Metric:         Metric(h.Metric),
		M:              int(h.M),
		EfConstruction: int(h.EfConstruction),
		EfSearch:       int(h.EfSearch),
		MaxElements:    int(h.MaxElements),
	}, nil
}

// SaveMeta writes the {name}.hnsw.meta payload maps in the exact layout
// the wire spec fixes: little-endian u64 count, u64 next_key, then count
// records of {u64 key, u64 id_len, id bytes, u64 values_len, values_len
// float32s, u64 meta_len, meta_len * (u64 klen, k bytes, u64 vlen, v bytes)}.
func (idx *Index) SaveMeta(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bw := bufio.NewWriter(w)

	if err := writeU64(bw, uint64(len(idx.payload))); err != nil {
		return err
	}
	if err := writeU64(bw, idx.nextKey); err != nil {
		return err
	}

	for key, p := range idx.payload {
		if err := writeU64(bw, key); err != nil {
			return err
		}
		if err := writeString(bw, p.id); err != nil {
			return err
		}
		values := idx.g.vectors[key]
		if err := writeU64(bw, uint64(len(values))); err != nil {
			return err
		}
		for _, v := range values {
			if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		if err := writeU64(bw, uint64(len(p.metadata))); err != nil {
			return err
		}
		for k, v := range p.metadata {
			if err := writeString(bw, k); err != nil {
				return err
			}
			if err := writeString(bw, v); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// LoadMeta reconstructs an Index from a {name}.hnsw.meta stream using cfg
// for the HNSW construction parameters (taken from the paired config
// sidecar, not the meta file).
func LoadMeta(r io.Reader, cfg Config) (*Index, error) {
	br := bufio.NewReader(r)

	count, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("read record count: %w", err)
	}
	nextKey, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("read next_key: %w", err)
	}

	idx := New(cfg)

	for i := uint64(0); i < count; i++ {
		key, err := readU64(br)
		if err != nil {
			return nil, fmt.Errorf("record %d: read key: %w", i, err)
		}
		id, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("record %d: read id: %w", i, err)
		}
		valuesLen, err := readU64(br)
		if err != nil {
			return nil, fmt.Errorf("record %d: read values_len: %w", i, err)
		}
		values := make([]float32, valuesLen)
		for j := range values {
			if err := binary.Read(br, binary.LittleEndian, &values[j]); err != nil {
				return nil, fmt.Errorf("record %d: read value %d: %w", i, j, err)
			}
		}
		metaLen, err := readU64(br)
		if err != nil {
			return nil, fmt.Errorf("record %d: read meta_len: %w", i, err)
		}
		metadata := make(map[string]string, metaLen)
		for j := uint64(0); j < metaLen; j++ {
			k, err := readString(br)
			if err != nil {
				return nil, fmt.Errorf("record %d: read meta key %d: %w", i, j, err)
			}
			v, err := readString(br)
			if err != nil {
				return nil, fmt.Errorf("record %d: read meta value %d: %w", i, j, err)
			}
			metadata[k] = v
		}

		idx.insertWithKey(key, values, id, metadata)
	}

	idx.nextKey = nextKey
	return idx, nil
}

// insertWithKey rebuilds a single record at load time, bypassing the
// normal key-assignment and validation path since the data was already
// validated when it was first inserted and saved.
func (idx *Index) insertWithKey(key uint64, values []float32, id string, metadata map[string]string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.g.insert(key, values)
	idx.payload[key] = &payloadEntry{id: id, metadata: metadata}
	idx.idToKey[id] = key
	if key >= idx.nextKey {
		idx.nextKey = key + 1
	}
}

func writeU64(w io.Writer, v uint64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeString(w io.Writer, s string) error {
	if err := writeU64(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU64(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
