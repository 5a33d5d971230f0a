package recording

import (
	"bytes"
	"encoding/binary"
	"sync"
)

// MinArtifactBytes is the smallest WAV artifact worth sending anywhere.
// Shorter captures are treated as accidental taps and discarded.
const MinArtifactBytes = 1000

// maxCaptureBytes caps a session at roughly five minutes of 16 kHz mono
// s16le audio so a stuck session cannot grow without bound.
const maxCaptureBytes = 16000 * 2 * 60 * 5

// Collector accumulates PCM frames from a capture session and produces
// the final WAV artifact.
type Collector struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	opts    Options
	clipped bool
}

func NewCollector(opts Options) *Collector {
	return &Collector{opts: opts}
}

func (c *Collector) Append(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len()+len(f.Data) > maxCaptureBytes {
		c.clipped = true
		return
	}
	c.buf.Write(f.Data)
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

func (c *Collector) Clipped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clipped
}

// Artifact encodes the collected PCM as a WAV file. The second return
// is false when the capture is below MinArtifactBytes.
func (c *Collector) Artifact() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wav := EncodeWAV(c.buf.Bytes(), c.opts.SampleRate, c.opts.Channels)
	return wav, len(wav) >= MinArtifactBytes
}

// EncodeWAV wraps raw 16-bit little-endian PCM in a WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	dataSize := len(pcm)
	fileSize := 36 + dataSize

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(fileSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes()
}
