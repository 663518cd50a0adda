package model

// TranscriptWord 转写服务返回的单词及其时间戳（秒）
type TranscriptWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptSegment 合并后的时间片段，偏移量相对于原始（未切分）音频
type TranscriptSegment struct {
	Text               string  `json:"text"`
	StartOffsetSeconds float64 `json:"startOffsetSeconds"`
	EndOffsetSeconds   float64 `json:"endOffsetSeconds"`
}
