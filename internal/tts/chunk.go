package tts

import (
	"strings"
	"unicode/utf8"
)

// defaultMaxChunkChars 是单次送入模型的最大字符数，超长输入会被模型截断。
const defaultMaxChunkChars = 400

var sentenceEnders = []rune{'.', '!', '?', ';', '。', '！', '？', '；', '\n'}

// extractSentence 尝试从文本中提取第一个完整句子。
func extractSentence(text string) (string, string, bool) {
	for i, r := range text {
		for _, ender := range sentenceEnders {
			if r == ender {
				splitAt := i + utf8.RuneLen(r)
				return text[:splitAt], text[splitAt:], true
			}
		}
	}
	return "", text, false
}

// splitText 按句切分后合并为若干段，每段不超过 maxChars 个字符。
// 单句超长时按空白继续切分。
func splitText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = defaultMaxChunkChars
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}
	add := func(piece string) {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+1+utf8.RuneCountInString(piece) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(piece)
	}

	remaining := text
	for remaining != "" {
		sentence, rest, found := extractSentence(remaining)
		if !found {
			sentence, rest = remaining, ""
		}
		remaining = rest

		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if utf8.RuneCountInString(sentence) <= maxChars {
			add(sentence)
			continue
		}
		for _, word := range splitWords(sentence, maxChars) {
			add(word)
		}
	}
	flush()
	return chunks
}

// splitWords 把超长句子按空白切成不超过 maxChars 的片段，单个超长词按字符切开。
func splitWords(sentence string, maxChars int) []string {
	var pieces []string
	for _, word := range strings.Fields(sentence) {
		for utf8.RuneCountInString(word) > maxChars {
			runes := []rune(word)
			pieces = append(pieces, string(runes[:maxChars]))
			word = string(runes[maxChars:])
		}
		if word != "" {
			pieces = append(pieces, word)
		}
	}
	return pieces
}
