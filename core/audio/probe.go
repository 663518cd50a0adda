package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"VoxNote/core/apperr"
	"VoxNote/logger"

	"github.com/go-audio/wav"
	"github.com/jfreymuth/oggvorbis"
	"github.com/tcolgate/mp3"
)

// Format 音频容器格式
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatOgg  Format = "ogg"
	FormatMP4  Format = "mp4"
	FormatFLAC Format = "flac"
	FormatWebM Format = "webm"
)

// ContentType 返回上传对象存储时使用的 MIME 类型
func (f Format) ContentType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	case FormatOgg:
		return "audio/ogg"
	case FormatMP4:
		return "audio/mp4"
	case FormatFLAC:
		return "audio/flac"
	case FormatWebM:
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

// Extension 返回临时文件使用的扩展名
func (f Format) Extension() string {
	switch f {
	case FormatMP3, FormatWAV, FormatOgg, FormatFLAC, FormatWebM:
		return "." + string(f)
	case FormatMP4:
		return ".m4a"
	default:
		return ".audio"
	}
}

// ffprobe format_name 到 Format 的映射
var ffprobeFormats = map[string]Format{
	"mp3":      FormatMP3,
	"wav":      FormatWAV,
	"ogg":      FormatOgg,
	"mov":      FormatMP4,
	"mp4":      FormatMP4,
	"flac":     FormatFLAC,
	"matroska": FormatWebM,
	"webm":     FormatWebM,
}

// ProbeResult 探测结果
type ProbeResult struct {
	DurationSeconds float64
	Format          Format
}

// FileProber 基于文件路径的后备探测器（ffprobe）
type FileProber interface {
	ProbeFile(ctx context.Context, path string) (format string, seconds float64, err error)
}

// Probe 校验音频容器并读取时长，超过上限的音频直接拒绝。
type Probe struct {
	maxDurationSeconds float64
	scratchDir         string
	fallback           FileProber
}

// NewProbe 创建探测器；fallback 可以为 nil，此时只识别 MP3/PCM WAV/Ogg Vorbis
func NewProbe(maxDurationSeconds float64, scratchDir string, fallback FileProber) *Probe {
	return &Probe{
		maxDurationSeconds: maxDurationSeconds,
		scratchDir:         scratchDir,
		fallback:           fallback,
	}
}

// Probe 将数据写入本次调用独占的临时文件后进行格式检查，
// 临时文件在任何返回路径上都会被删除。data 不会被修改。
func (p *Probe) Probe(ctx context.Context, data []byte) (result *ProbeResult, err error) {
	if len(data) == 0 {
		return nil, apperr.Errorf(apperr.InvalidAudioFormat, "invalid audio file: empty upload")
	}

	scratch, err := os.CreateTemp(p.scratchDir, "voxnote-probe-*.audio")
	if err != nil {
		return nil, apperr.New(apperr.Internal, "create probe scratch file", err)
	}
	scratchPath := scratch.Name()
	defer func() {
		scratch.Close()
		if rmErr := os.Remove(scratchPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn("[AudioProbe] 删除临时文件失败", logger.String("path", scratchPath), logger.ErrorField(rmErr))
		}
	}()

	if _, err := scratch.Write(data); err != nil {
		return nil, apperr.New(apperr.Internal, "write probe scratch file", err)
	}

	result, err = p.inspect(ctx, scratch, scratchPath, data)
	if err != nil {
		return nil, apperr.New(apperr.InvalidAudioFormat, "invalid audio file", err)
	}

	if result.DurationSeconds > p.maxDurationSeconds {
		return nil, apperr.Errorf(apperr.DurationExceeded,
			"audio file too long (%.1fs). Maximum duration is %g seconds", result.DurationSeconds, p.maxDurationSeconds)
	}

	logger.Debug("[AudioProbe] 音频探测完成",
		logger.String("format", string(result.Format)),
		logger.Float64("duration", result.DurationSeconds))
	return result, nil
}

func (p *Probe) inspect(ctx context.Context, f *os.File, path string, data []byte) (*ProbeResult, error) {
	var (
		res       *ProbeResult
		nativeErr error
	)
	// 原生解码失败的容器（如 Ogg Opus、WAVE_FORMAT_EXTENSIBLE）交给 ffprobe
	switch {
	case isWAV(data):
		res, nativeErr = decodeWAV(f)
	case bytes.HasPrefix(data, []byte("OggS")):
		res, nativeErr = decodeOgg(f)
	case isMP4(data):
		nativeErr = errors.New("no native decoder for MP4 container")
	default:
		res, nativeErr = decodeMP3(f, data)
	}
	if nativeErr == nil {
		return res, nil
	}

	if p.fallback == nil {
		return nil, nativeErr
	}

	name, seconds, err := p.fallback.ProbeFile(ctx, path)
	if err != nil {
		logger.Debug("[AudioProbe] ffprobe 后备探测失败", logger.ErrorField(err))
		return nil, nativeErr
	}
	format, ok := ffprobeFormats[name]
	if !ok {
		// 转写服务按扩展名识别格式，无法映射的容器直接拒绝
		return nil, fmt.Errorf("unsupported audio container %q", name)
	}
	return &ProbeResult{DurationSeconds: seconds, Format: format}, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP4(data []byte) bool {
	return len(data) >= 12 && string(data[4:8]) == "ftyp"
}

func decodeWAV(f *os.File) (*ProbeResult, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, errors.New("invalid WAV file: malformed RIFF header")
	}
	dur, err := d.Duration()
	if err != nil {
		return nil, fmt.Errorf("invalid WAV file: %w", err)
	}
	return &ProbeResult{DurationSeconds: dur.Seconds(), Format: FormatWAV}, nil
}

func decodeOgg(f *os.File) (*ProbeResult, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	samples, format, err := oggvorbis.GetLength(f)
	if err != nil {
		return nil, fmt.Errorf("invalid Ogg Vorbis file: %w", err)
	}
	if format == nil || format.SampleRate <= 0 {
		return nil, errors.New("invalid Ogg Vorbis file: missing sample rate")
	}
	return &ProbeResult{DurationSeconds: float64(samples) / float64(format.SampleRate), Format: FormatOgg}, nil
}

// id3v2Size 返回 ID3v2 标签（含头部与可选尾部）的字节数，没有标签时为 0
func id3v2Size(data []byte) int64 {
	if len(data) < 10 || string(data[0:3]) != "ID3" {
		return 0
	}
	// synchsafe 整数：每字节只使用低 7 位
	size := int64(data[6]&0x7f)<<21 | int64(data[7]&0x7f)<<14 | int64(data[8]&0x7f)<<7 | int64(data[9]&0x7f)
	size += 10
	if data[5]&0x10 != 0 {
		size += 10 // footer
	}
	return size
}

func decodeMP3(f *os.File, data []byte) (*ProbeResult, error) {
	offset := id3v2Size(data)
	if offset >= int64(len(data)) {
		return nil, errors.New("invalid MP3 file: Could not find MPEG frame headers")
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	d := mp3.NewDecoder(f)
	var (
		frame   mp3.Frame
		skipped int
		frames  int
		total   time.Duration
	)
	for {
		if err := d.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if frames > 0 {
				// 末尾的残缺帧不影响已解析部分
				break
			}
			return nil, fmt.Errorf("invalid MP3 file: %w", err)
		}
		// 第一帧必须紧跟在标签之后，否则视为帧头缺失或损坏
		if frames == 0 && skipped > 0 {
			return nil, errors.New("invalid MP3 file: Could not find MPEG frame headers")
		}
		frames++
		total += frame.Duration()
	}

	if frames == 0 {
		return nil, errors.New("invalid MP3 file: Could not find MPEG frame headers")
	}
	return &ProbeResult{DurationSeconds: total.Seconds(), Format: FormatMP3}, nil
}
