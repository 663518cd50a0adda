package transcribe

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"VoxNote/model"
)

// OffsetWords 返回时间戳整体平移 offset 秒后的副本，负时间戳按 0 处理
func OffsetWords(words []model.TranscriptWord, offset float64) []model.TranscriptWord {
	out := make([]model.TranscriptWord, len(words))
	for i, w := range words {
		start, end := math.Max(w.Start, 0), math.Max(w.End, 0)
		out[i] = model.TranscriptWord{Word: w.Word, Start: start + offset, End: end + offset}
	}
	return out
}

// MergeChunks 将各分片的单词序列按分片序号平移后合并。
// 第 k 个分片的时间戳加上 k*chunkLength，结果按起始时间稳定排序，
// 保证即使切分点附近存在重叠也不会出现时间倒退。
func MergeChunks(chunks [][]model.TranscriptWord, chunkLength float64) []model.TranscriptSegment {
	var segments []model.TranscriptSegment
	for k, words := range chunks {
		for _, w := range OffsetWords(words, float64(k)*chunkLength) {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			segments = append(segments, model.TranscriptSegment{
				Text:               text,
				StartOffsetSeconds: w.Start,
				EndOffsetSeconds:   math.Max(w.End, w.Start),
			})
		}
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartOffsetSeconds < segments[j].StartOffsetSeconds
	})
	return segments
}

// FormatMarker 将秒数格式化为 MM:SS
func FormatMarker(seconds float64) string {
	total := int(math.Max(seconds, 0))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Render 按固定间隔把片段排成带时间标记的文本行。
// 每行的标记是该行起始偏移向下取整到间隔边界的值，
// 落在 [marker, marker+interval) 内的单词共用一行；没有片段时返回空串。
func Render(segments []model.TranscriptSegment, interval float64) string {
	if len(segments) == 0 {
		return ""
	}

	var (
		lines  []string
		words  []string
		marker float64
	)
	flush := func() {
		if len(words) > 0 {
			lines = append(lines, fmt.Sprintf("[%s] %s", FormatMarker(marker), strings.Join(words, " ")))
			words = words[:0]
		}
	}

	for _, s := range segments {
		if interval > 0 && s.StartOffsetSeconds >= marker+interval {
			flush()
			marker = math.Floor(s.StartOffsetSeconds/interval) * interval
		}
		words = append(words, s.Text)
	}
	flush()

	return strings.Join(lines, "\n")
}
