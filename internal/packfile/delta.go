package packfile

import "fmt"

// ApplyDelta reconstructs an object's content by applying delta's
// copy/insert instruction stream against base. It implements §4.4.3 of the
// indexer's delta algorithm: a leading pair of size varints (base size,
// result size) followed by a sequence of copy and insert instructions.
//
// Grounded on the flag-byte bit layout used throughout the pack format's
// delta encoding (ahrav-go-gitpack's applyDelta and the original libgit2
// git_delta_apply_to_buf); reproduced here without its sync.Pool buffer
// reuse, since the indexer already bounds concurrency itself.
func ApplyDelta(base, delta []byte) ([]byte, error) {
	baseSize, n, ok := decodeDeltaSize(delta)
	if !ok {
		return nil, fmt.Errorf("packfile: delta: truncated base-size varint")
	}
	delta = delta[n:]
	if uint64(len(base)) != baseSize {
		return nil, fmt.Errorf("packfile: delta: base size mismatch: delta expects %d, got %d", baseSize, len(base))
	}

	resultSize, n, ok := decodeDeltaSize(delta)
	if !ok {
		return nil, fmt.Errorf("packfile: delta: truncated result-size varint")
	}
	delta = delta[n:]

	out := make([]byte, 0, resultSize)
	for len(delta) > 0 {
		op := delta[0]
		delta = delta[1:]

		if op&0x80 != 0 {
			// Copy instruction: up to 4 offset bytes then up to 3 length
			// bytes, each present only if its corresponding bit in op is set.
			var offset, length uint64
			for i := 0; i < 4; i++ {
				if op&(1<<i) != 0 {
					if len(delta) == 0 {
						return nil, fmt.Errorf("packfile: delta: truncated copy offset")
					}
					offset |= uint64(delta[0]) << (8 * i)
					delta = delta[1:]
				}
			}
			for i := 0; i < 3; i++ {
				if op&(1<<(4+i)) != 0 {
					if len(delta) == 0 {
						return nil, fmt.Errorf("packfile: delta: truncated copy length")
					}
					length |= uint64(delta[0]) << (8 * i)
					delta = delta[1:]
				}
			}
			if length == 0 {
				length = 0x10000
			}
			if offset+length > uint64(len(base)) {
				return nil, fmt.Errorf("packfile: delta: copy instruction reads past base (offset=%d length=%d base=%d)", offset, length, len(base))
			}
			out = append(out, base[offset:offset+length]...)
		} else if op != 0 {
			// Insert instruction: op itself is the length, 1..127.
			length := int(op)
			if length > len(delta) {
				return nil, fmt.Errorf("packfile: delta: insert instruction reads past delta buffer")
			}
			out = append(out, delta[:length]...)
			delta = delta[length:]
		} else {
			return nil, fmt.Errorf("packfile: delta: reserved zero opcode")
		}
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("packfile: delta: result size mismatch: expected %d, got %d", resultSize, len(out))
	}
	return out, nil
}
