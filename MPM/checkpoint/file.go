package checkpoint

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

var magic = [8]byte{'G', 'O', 'M', 'P', 'M', 'P', 'R', 'T'}

const fileVersion = 1

type header struct {
	Magic   [8]byte
	Version uint32
	Kind    Kind
	Count   uint64
}

// WriteFile stores records behind a header carrying the record kind and count
func WriteFile[T Records](path string, recs []T) (err error) {
	var f *os.File
	if f, err = os.Create(path); err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err = Write(w, recs); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Flush()
}

func Write[T Records](w io.Writer, recs []T) (err error) {
	h := header{Magic: magic, Version: fileVersion, Kind: KindOf[T](), Count: uint64(len(recs))}
	if err = binary.Write(w, binary.LittleEndian, &h); err != nil {
		return
	}
	var data []byte
	if data, err = Encode(recs); err != nil {
		return
	}
	_, err = w.Write(data)
	return
}

func ReadFile[T Records](path string) (recs []T, err error) {
	var f *os.File
	if f, err = os.Open(path); err != nil {
		return
	}
	defer f.Close()
	if recs, err = Read[T](bufio.NewReader(f)); err != nil {
		err = fmt.Errorf("read %s: %w", path, err)
	}
	return
}

func Read[T Records](r io.Reader) (recs []T, err error) {
	var h header
	if err = binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	switch {
	case h.Magic != magic:
		return nil, fmt.Errorf("not a particle checkpoint")
	case h.Version != fileVersion:
		return nil, fmt.Errorf("unsupported checkpoint version %d", h.Version)
	case h.Kind != KindOf[T]():
		return nil, fmt.Errorf("checkpoint holds %s records, want %s", h.Kind, KindOf[T]())
	}
	data := make([]byte, int(h.Count)*SizeOf[T]())
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%d records: %w", h.Count, err)
	}
	return Decode[T](data)
}
