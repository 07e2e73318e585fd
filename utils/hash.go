package utils

// ElfHash is the case-insensitive ELF string hash the engine uses to bind
// joints and tracks by name. Only ASCII letters are folded.
func ElfHash(name []byte) uint32 {
	var h uint32
	for _, c := range name {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		h = (h << 4) + uint32(c)
		if high := h & 0xF0000000; high != 0 {
			h ^= high >> 24
			h &^= high
		}
	}
	return h
}

func ElfHashString(name string) uint32 {
	return ElfHash([]byte(name))
}
