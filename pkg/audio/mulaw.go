package audio

// G.711 μ-law companding for 16-bit linear PCM. Used by the forwarder when a
// peer expects 8-bit telephony audio.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// MuLawEncode compresses one 16-bit sample to a μ-law byte.
func MuLawEncode(sample int16) byte {
	s := int(sample)
	var sign int
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias

	exponent := 7
	for mask := 0x4000; s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (s >> (exponent + 3)) & 0x0f

	return ^byte(sign | exponent<<4 | mantissa)
}

// MuLawDecode expands a μ-law byte to a 16-bit sample.
func MuLawDecode(u byte) int16 {
	u = ^u
	exponent := int(u>>4) & 0x07
	mantissa := int(u) & 0x0f

	s := ((mantissa << 3) + muLawBias) << exponent
	s -= muLawBias
	if u&0x80 != 0 {
		s = -s
	}
	return int16(s)
}

// EncodeMuLaw compresses little-endian 16-bit PCM into dst and returns the
// number of bytes written. dst must hold len(pcm)/2 bytes.
func EncodeMuLaw(dst, pcm []byte) int {
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		dst[i] = MuLawEncode(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
	}
	return n
}

// DecodeMuLaw expands μ-law bytes into little-endian 16-bit PCM in dst and
// returns the number of bytes written. dst must hold 2*len(src) bytes.
func DecodeMuLaw(dst, src []byte) int {
	for i, u := range src {
		s := uint16(MuLawDecode(u))
		dst[2*i] = byte(s)
		dst[2*i+1] = byte(s >> 8)
	}
	return 2 * len(src)
}
