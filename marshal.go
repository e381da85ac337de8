package ups

import "github.com/cruppstahl/ups/internal/engine"

// marshalKey builds the engine key structure for key. The engine reads the
// caller's bytes only for the duration of the call.
func marshalKey(key []byte) (engine.Key, error) {
	if len(key) > MaxKeySize {
		return engine.Key{}, &Error{Code: ErrInvKeySize, Message: "key exceeds 32767 bytes"}
	}
	return engine.Key{Size: int16(len(key)), Data: key}, nil
}

func marshalRecord(rec []byte) (engine.Record, error) {
	if uint64(len(rec)) > MaxRecordSize {
		return engine.Record{}, &Error{Code: ErrInvRecordSize, Message: "record exceeds 4 GiB"}
	}
	return engine.Record{Size: uint32(len(rec)), Data: rec}, nil
}

// marshalPartial builds a record that writes or reads size bytes at off.
func marshalPartial(rec []byte, off, size uint32) (engine.Record, error) {
	r, err := marshalRecord(rec)
	if err != nil {
		return r, err
	}
	r.PartialOffset, r.PartialSize = off, size
	return r, nil
}

// copyKey returns a caller-owned copy of the key the engine returned. The
// engine's buffer is scratch memory that the next call overwrites.
func copyKey(k *engine.Key) []byte {
	n := max(int(k.Size), 0)
	out := make([]byte, n)
	copy(out, k.Data[:n])
	return out
}

func copyRecord(r *engine.Record) []byte {
	out := make([]byte, r.Size)
	copy(out, r.Data[:r.Size])
	return out
}
