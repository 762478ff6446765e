package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Index file layout, little-endian:
//
//	magic "VBIX" | version u32 | kind u8 | dim u32 | count u32 | body
//
// Flat body: count*dim float32. IVF body:
//
//	nlist u32 | nprobe u32 | trained u8 | [nlist*dim float32 centroids]
//	then per list: n u32 | n ids u32 | n*dim float32
const (
	indexMagic   = "VBIX"
	indexVersion = uint32(1)

	kindCodeFlat = uint8(1)
	kindCodeIVF  = uint8(2)
)

var errTruncated = errors.New("index data truncated")

type header struct {
	kind  uint8
	dim   uint32
	count uint32
}

func writeHeader(buf *bytes.Buffer, h header) {
	buf.WriteString(indexMagic)
	_ = binary.Write(buf, binary.LittleEndian, indexVersion)
	_ = binary.Write(buf, binary.LittleEndian, h.kind)
	_ = binary.Write(buf, binary.LittleEndian, h.dim)
	_ = binary.Write(buf, binary.LittleEndian, h.count)
}

func readHeader(r io.Reader) (header, error) {
	var h header
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return h, errTruncated
	}
	if string(magic) != indexMagic {
		return h, fmt.Errorf("not an index file (magic %q)", magic)
	}
	var version uint32
	if err := readLE(r, &version); err != nil {
		return h, err
	}
	if version != indexVersion {
		return h, fmt.Errorf("unsupported index version %d", version)
	}
	if err := readLE(r, &h.kind); err != nil {
		return h, err
	}
	if err := readLE(r, &h.dim); err != nil {
		return h, err
	}
	if err := readLE(r, &h.count); err != nil {
		return h, err
	}
	return h, nil
}

func readLE(r io.Reader, v any) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errTruncated
		}
		return err
	}
	return nil
}

func writeVectors(buf *bytes.Buffer, vectors [][]float32) {
	for _, v := range vectors {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
}

func readVectors(r io.Reader, n, dim int) ([][]float32, error) {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		if err := readLE(r, v); err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// KindOfIndexData peeks at an encoded index and returns its kind.
func KindOfIndexData(data []byte) (IndexKind, error) {
	h, err := readHeader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	switch h.kind {
	case kindCodeFlat:
		return KindFlat, nil
	case kindCodeIVF:
		return KindIVF, nil
	default:
		return "", fmt.Errorf("unknown index kind code %d", h.kind)
	}
}

// DecodeIndex reconstructs an index of whatever kind data holds.
func DecodeIndex(data []byte) (Index, error) {
	kind, err := KindOfIndexData(data)
	if err != nil {
		return nil, err
	}
	var idx Index
	switch kind {
	case KindFlat:
		idx = &FlatIndex{}
	default:
		idx = &IVFIndex{}
	}
	if err := idx.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return idx, nil
}

// MarshalBinary encodes the flat index.
func (f *FlatIndex) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	writeHeader(&buf, header{kind: kindCodeFlat, dim: uint32(f.dim), count: uint32(len(f.vectors))})
	writeVectors(&buf, f.vectors)
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a flat index.
func (f *FlatIndex) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	h, err := readHeader(r)
	if err != nil {
		return err
	}
	if h.kind != kindCodeFlat {
		return fmt.Errorf("expected flat index, found kind code %d", h.kind)
	}
	vectors, err := readVectors(r, int(h.count), int(h.dim))
	if err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after flat index", r.Len())
	}
	f.dim = int(h.dim)
	f.vectors = vectors
	return nil
}

// MarshalBinary encodes the IVF index including centroids and lists.
func (ivf *IVFIndex) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	writeHeader(&buf, header{kind: kindCodeIVF, dim: uint32(ivf.dim), count: uint32(ivf.count)})
	_ = binary.Write(&buf, binary.LittleEndian, uint32(ivf.nlist))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(ivf.nprobe))

	trained := uint8(0)
	if ivf.trained {
		trained = 1
	}
	_ = binary.Write(&buf, binary.LittleEndian, trained)
	if !ivf.trained {
		return buf.Bytes(), nil
	}

	writeVectors(&buf, ivf.centroids)
	for _, list := range ivf.lists {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(list.ids)))
		ids := make([]uint32, len(list.ids))
		for i, id := range list.ids {
			ids[i] = uint32(id)
		}
		_ = binary.Write(&buf, binary.LittleEndian, ids)
		writeVectors(&buf, list.vectors)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores an IVF index and validates that every position
// 0..count-1 appears in exactly one list.
func (ivf *IVFIndex) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	h, err := readHeader(r)
	if err != nil {
		return err
	}
	if h.kind != kindCodeIVF {
		return fmt.Errorf("expected ivf index, found kind code %d", h.kind)
	}

	var nlist, nprobe uint32
	var trained uint8
	if err := readLE(r, &nlist); err != nil {
		return err
	}
	if err := readLE(r, &nprobe); err != nil {
		return err
	}
	if err := readLE(r, &trained); err != nil {
		return err
	}

	if nlist == 0 || int(nlist) > max(int(h.count), MaxPartitions) {
		return fmt.Errorf("implausible partition count %d for %d vectors", nlist, h.count)
	}

	out := NewIVFIndex(int(h.dim), int(nlist), int(nprobe))
	if trained == 1 {
		centroids, err := readVectors(r, int(nlist), int(h.dim))
		if err != nil {
			return err
		}
		out.centroids = centroids
		out.trained = true

		seen := make([]bool, h.count)
		for l := range out.lists {
			var n uint32
			if err := readLE(r, &n); err != nil {
				return err
			}
			if n > h.count {
				return fmt.Errorf("list %d claims %d entries, index holds %d", l, n, h.count)
			}
			ids := make([]uint32, n)
			if err := readLE(r, ids); err != nil {
				return err
			}
			vectors, err := readVectors(r, int(n), int(h.dim))
			if err != nil {
				return err
			}
			list := &out.lists[l]
			for _, id := range ids {
				if id >= h.count || seen[id] {
					return fmt.Errorf("list %d holds invalid or duplicate id %d", l, id)
				}
				seen[id] = true
				list.ids = append(list.ids, int(id))
			}
			list.vectors = vectors
			out.count += int(n)
		}
	}
	if out.count != int(h.count) {
		return fmt.Errorf("ivf lists hold %d vectors, header says %d", out.count, h.count)
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after ivf index", r.Len())
	}

	*ivf = *out
	return nil
}
