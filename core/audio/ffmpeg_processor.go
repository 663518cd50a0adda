package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"VoxNote/logger"
)

// FFmpegProcessor 通过 ffmpeg/ffprobe 可执行文件切分音频、读取时长。
type FFmpegProcessor struct {
	ffmpegPath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath}
}

func (p *FFmpegProcessor) ffprobePath() string {
	dir, base := filepath.Split(p.ffmpegPath)
	return dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)
}

// Available 检查 ffmpeg 是否可执行，长音频切分依赖它
func (p *FFmpegProcessor) Available() error {
	if _, err := exec.LookPath(p.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg is not installed or not found in system PATH: %w", err)
	}
	return nil
}

// Split 将 inputFile 按 chunkSeconds 切分为顺序分片（流拷贝，不重新编码），
// 分片写入 outputDir，返回按顺序排列的分片路径。
func (p *FFmpegProcessor) Split(ctx context.Context, inputFile, outputDir string, chunkSeconds float64) ([]string, error) {
	base := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	ext := filepath.Ext(inputFile)
	if ext == "" {
		ext = ".mp3"
	}
	prefix := base + "_"
	pattern := filepath.Join(outputDir, prefix+"%03d"+ext)

	args := []string{
		"-y",
		"-v", "error",
		"-i", inputFile,
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(chunkSeconds, 'f', -1, 64),
		"-c", "copy",
		pattern,
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("[FFmpeg] 执行切分命令", logger.String("cmd", p.ffmpegPath+" "+strings.Join(args, " ")))

	// 即使失败也返回已生成的分片，调用方负责清理
	runErr := cmd.Run()
	chunks, listErr := listChunks(outputDir, prefix)
	if runErr != nil {
		return chunks, fmt.Errorf("ffmpeg execution failed for %s: %w\nFFmpeg Error: %s", inputFile, runErr, stderr.String())
	}
	if listErr != nil {
		return chunks, listErr
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no segments for %s", inputFile)
	}
	return chunks, nil
}

func listChunks(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list segment directory %s: %w", dir, err)
	}
	var chunks []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			chunks = append(chunks, filepath.Join(dir, e.Name()))
		}
	}
	// %03d 编号保证字典序即时间顺序
	sort.Strings(chunks)
	return chunks, nil
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// ProbeFile 使用 ffprobe 读取文件的容器格式与时长，文件中必须含有音频流。
func (p *FFmpegProcessor) ProbeFile(ctx context.Context, inputFile string) (format string, seconds float64, err error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=format_name,duration:stream=codec_type,codec_name",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath(), args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return "", 0, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", inputFile, err)
	}

	hasAudio := false
	for _, s := range probeData.Streams {
		if s.CodecType == "audio" {
			hasAudio = true
			break
		}
	}
	if !hasAudio {
		return "", 0, fmt.Errorf("no audio streams found in %s", inputFile)
	}

	if probeData.Format.Duration == "" {
		return "", 0, fmt.Errorf("duration not found in ffprobe output for %s", inputFile)
	}
	seconds, err = strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse duration string %q for %s: %w", probeData.Format.Duration, inputFile, err)
	}

	// format_name 可能是逗号分隔的列表，例如 "mov,mp4,m4a,3gp,3g2,mj2"
	format = strings.SplitN(probeData.Format.FormatName, ",", 2)[0]
	return format, seconds, nil
}
