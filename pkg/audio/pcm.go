package audio

// BytesToInts decodes little-endian 16-bit samples, appending them to dst.
// A trailing odd byte is ignored.
func BytesToInts(dst []int, p []byte) []int {
	for i := 0; i+1 < len(p); i += 2 {
		dst = append(dst, int(int16(uint16(p[i])|uint16(p[i+1])<<8)))
	}
	return dst
}

// BytesToInt16 decodes little-endian 16-bit samples into dst and returns the
// number of samples written.
func BytesToInt16(dst []int16, p []byte) int {
	n := len(p) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = int16(uint16(p[2*i]) | uint16(p[2*i+1])<<8)
	}
	return n
}

// IntsToBytes encodes samples as little-endian 16-bit PCM, appending to dst.
// Values outside the int16 range are clipped.
func IntsToBytes(dst []byte, samples []int) []byte {
	for _, s := range samples {
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		v := uint16(int16(s))
		dst = append(dst, byte(v), byte(v>>8))
	}
	return dst
}
