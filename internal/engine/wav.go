package engine

import "encoding/binary"

// pcmToWAV wraps raw little-endian PCM samples in a RIFF/WAVE container.
// Engines that return bare PCM (Gemini, ElevenLabs) use this so every output
// artifact is a playable WAV file.
func pcmToWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := make([]byte, 0, 44+len(pcm))
	le := binary.LittleEndian

	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		le.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		le.PutUint16(b, v)
		return b
	}

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, u32(uint32(36+len(pcm)))...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, u32(16)...)                    // PCM fmt chunk size
	buf = append(buf, u16(1)...)                     // PCM format
	buf = append(buf, u16(uint16(channels))...)
	buf = append(buf, u32(uint32(sampleRate))...)
	buf = append(buf, u32(uint32(byteRate))...)
	buf = append(buf, u16(uint16(blockAlign))...)
	buf = append(buf, u16(uint16(bitsPerSample))...)
	buf = append(buf, []byte("data")...)
	buf = append(buf, u32(uint32(len(pcm)))...)
	buf = append(buf, pcm...)
	return buf
}
