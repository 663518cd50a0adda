// Package audiotest 生成测试用的最小合法音频数据。
package audiotest

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	mp3SampleRate      = 44100
	mp3SamplesPerFrame = 1152
	// MPEG-1 Layer III, 128kbps, 44.1kHz, 无填充: 144*128000/44100
	mp3FrameSize = 417
)

// MP3FrameSeconds 单个 MP3 帧的时长
const MP3FrameSeconds = float64(mp3SamplesPerFrame) / mp3SampleRate

// MP3 构造约 seconds 秒的 CBR MP3 数据（静音帧），时长向上取整到整帧
func MP3(seconds float64) []byte {
	frames := int(math.Ceil(seconds / MP3FrameSeconds))
	frame := make([]byte, mp3FrameSize)
	// 帧同步 + MPEG-1 Layer III 无 CRC，128kbps，44.1kHz，单声道
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0xC0})

	buf := bytes.NewBuffer(make([]byte, 0, frames*mp3FrameSize))
	for i := 0; i < frames; i++ {
		buf.Write(frame)
	}
	return buf.Bytes()
}

// MP3WithID3 在 MP3 数据前加上一个指定大小的 ID3v2.3 标签
func MP3WithID3(seconds float64, tagPayload int) []byte {
	header := []byte{'I', 'D', '3', 3, 0, 0,
		byte(tagPayload >> 21 & 0x7f),
		byte(tagPayload >> 14 & 0x7f),
		byte(tagPayload >> 7 & 0x7f),
		byte(tagPayload & 0x7f),
	}
	out := append(header, make([]byte, tagPayload)...)
	return append(out, MP3(seconds)...)
}

// WAV 构造 seconds 秒的 8kHz 16bit 单声道 PCM WAV 数据
func WAV(seconds float64) []byte {
	const (
		sampleRate    = 8000
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	dataLen := int(seconds*sampleRate) * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

// OggOpus 构造只含 OpusHead 标识包的单页 Ogg 流（BOS 页，CRC 正确）
func OggOpus() []byte {
	var head bytes.Buffer
	head.WriteString("OpusHead")
	head.WriteByte(1) // version
	head.WriteByte(1) // channels
	_ = binary.Write(&head, binary.LittleEndian, uint16(312))   // pre-skip
	_ = binary.Write(&head, binary.LittleEndian, uint32(48000)) // input sample rate
	_ = binary.Write(&head, binary.LittleEndian, int16(0))      // output gain
	head.WriteByte(0)                                           // mapping family

	var page bytes.Buffer
	page.WriteString("OggS")
	page.WriteByte(0)    // stream structure version
	page.WriteByte(0x02) // beginning of stream
	_ = binary.Write(&page, binary.LittleEndian, uint64(0)) // granule position
	_ = binary.Write(&page, binary.LittleEndian, uint32(1)) // serial
	_ = binary.Write(&page, binary.LittleEndian, uint32(0)) // sequence
	_ = binary.Write(&page, binary.LittleEndian, uint32(0)) // checksum, 稍后回填
	page.WriteByte(1)
	page.WriteByte(byte(head.Len()))
	page.Write(head.Bytes())

	out := page.Bytes()
	binary.LittleEndian.PutUint32(out[22:26], oggCRC(out))
	return out
}

// oggCRC Ogg 页校验：多项式 0x04c11db7，不反射，初值 0
func oggCRC(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc ^= uint32(b) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
