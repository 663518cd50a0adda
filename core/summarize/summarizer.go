// Package summarize 以固定的 SOAP 报告模板生成转写文本摘要。
package summarize

import (
	"context"
	"strings"
	"unicode/utf8"

	"VoxNote/core/apperr"
	"VoxNote/logger"
	"VoxNote/model"
)

// SystemPrompt 固定的系统提示词（牙科 SOAP 报告）
const SystemPrompt = "You are a dental assistant AI that summarizes text using the SOAP framework. The SOAP format consists of:\n\n" +
	"- **Subjective (S):** Patient's reported symptoms, concerns, and dental history.\n" +
	"- **Objective (O):** Clinical findings, test results, and observations from the dental examination.\n" +
	"- **Assessment (A):** Diagnosis or professional evaluation of the patient's dental condition.\n" +
	"- **Plan (P):** Recommended treatment, procedures, follow-up care, and next steps.\n\n" +
	"Ensure that each section is concise, clear, and professionally formatted."

const userPromptPrefix = "Please summarize - as a report - this text using the SOAP framework:\n\n"

// ChatClient 远程对话补全接口
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []model.OpenAIChatMessage, maxTokens int, temperature float64) (string, error)
}

// Config 摘要参数
type Config struct {
	MaxChars    int
	MaxTokens   int
	Temperature float64
}

// SummaryResult 摘要结果
type SummaryResult struct {
	Text      string
	Truncated bool
	InputLen  int // 提交给模型的字符数
}

// Summarizer 文本摘要器
type Summarizer struct {
	cfg    Config
	client ChatClient
}

// NewSummarizer 创建摘要器
func NewSummarizer(cfg Config, client ChatClient) *Summarizer {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 16000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	return &Summarizer{cfg: cfg, client: client}
}

// Truncate 按字符（而非字节）截取前 maxChars 个字符，不考虑单词边界
func Truncate(text string, maxChars int) (string, bool) {
	if utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i], true
		}
		n++
	}
	return text, false
}

// BuildMessages 构造提交给模型的消息
func BuildMessages(text string) []model.OpenAIChatMessage {
	return []model.OpenAIChatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: userPromptPrefix + text},
	}
}

// Summarize 生成摘要；空文本返回 EmptyInput，远程失败返回 SummarizationFailed
func (s *Summarizer) Summarize(ctx context.Context, text string) (*SummaryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Errorf(apperr.EmptyInput, "No text provided for summarization")
	}

	input, truncated := Truncate(text, s.cfg.MaxChars)
	if truncated {
		logger.Info("[Summarizer] 输入过长，已截断", logger.Int("maxChars", s.cfg.MaxChars))
	}

	out, err := s.client.ChatCompletion(ctx, BuildMessages(input), s.cfg.MaxTokens, s.cfg.Temperature)
	if err != nil {
		logger.Error("[Summarizer] 摘要生成失败", logger.ErrorField(err))
		return nil, apperr.New(apperr.SummarizationFailed, "Failed to summarize text", err)
	}

	return &SummaryResult{
		Text:      out,
		Truncated: truncated,
		InputLen:  utf8.RuneCountInString(input),
	}, nil
}
