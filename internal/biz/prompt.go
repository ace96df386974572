package biz

import (
	"fmt"
	"regexp"
	"strings"
)

// 页面摘要的正文长度上限（字符）
const pageTextMaxLen = 3000

var (
	htmlTagOpenRe  = regexp.MustCompile(`<[^>]+>`)
	htmlTagCloseRe = regexp.MustCompile(`</[^>]+>`)
	htmlBodyRe     = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)
	htmlScriptRe   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlStyleRe    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlNoiseRe    = regexp.MustCompile(`(?is)<(noscript|iframe|object|embed)[^>]*>.*?</(?:noscript|iframe|object|embed)>`)
	htmlEntityRe   = regexp.MustCompile(`&(?:[a-zA-Z]+|#\d+);`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// NormalizePageText 把页面抽取结果整理为可投喂的纯文本
// 输入可能是浏览器抽出的纯文本，也可能是整页 HTML，自动识别
func NormalizePageText(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	isHTML := htmlTagOpenRe.MatchString(content) && htmlTagCloseRe.MatchString(content)
	if !isHTML {
		return strings.TrimSpace(whitespaceRe.ReplaceAllString(content, " "))
	}

	text := content
	if m := htmlBodyRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = htmlScriptRe.ReplaceAllString(text, " ")
	text = htmlStyleRe.ReplaceAllString(text, " ")
	text = htmlNoiseRe.ReplaceAllString(text, " ")
	text = htmlTagOpenRe.ReplaceAllString(text, " ")
	text = htmlEntityRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))

	// 抽取结果过短时退回到裸标签剥离
	if len(text) < 100 {
		fallback := htmlTagOpenRe.ReplaceAllString(content, " ")
		fallback = strings.TrimSpace(whitespaceRe.ReplaceAllString(fallback, " "))
		if len(fallback) > len(text) {
			text = fallback
		}
	}
	return text
}

// TruncatePageText 截断正文，优先在句末标点处断开
func TruncatePageText(text string) string {
	runes := []rune(text)
	if len(runes) <= pageTextMaxLen {
		return text
	}
	head := string(runes[:pageTextMaxLen])

	cut := -1
	for _, mark := range []string{"。", ".", "?", "!"} {
		if pos := strings.LastIndex(head, mark); pos > cut {
			cut = pos + len(mark)
			break
		}
	}
	if cut <= 0 {
		return head
	}
	return head[:cut]
}

// BuildSummarizePrompt 页面总结提示词
func BuildSummarizePrompt(pageText string) string {
	normalized := NormalizePageText(pageText)
	if normalized == "" {
		return "无法获取页面内容，请确保页面已加载完成。"
	}
	return fmt.Sprintf("请总结以下网页内容，提取关键信息：\n\n%s", TruncatePageText(normalized))
}

// BuildExplainPrompt 划词解释提示词
func BuildExplainPrompt(selection string) string {
	return fmt.Sprintf("请解释以下文本：\n\n%s", selection)
}

// BuildTranslatePrompt 划词翻译提示词
func BuildTranslatePrompt(selection string) string {
	return fmt.Sprintf("请翻译以下文本：\n\n%s", selection)
}

// AppendCitedPages 把引用网页的正文拼接到消息文本之后
func AppendCitedPages(text string, pages []CitedPage) string {
	if len(pages) == 0 {
		return text
	}
	sections := make([]string, 0, len(pages))
	for _, p := range pages {
		content := p.Content
		if content == "" {
			content = "[页面内容未获取]"
		}
		sections = append(sections, fmt.Sprintf("引用网页 [%s] 的内容：\n%s", p.URL, content))
	}
	if text != "" {
		return text + "\n\n" + strings.Join(sections, "\n\n")
	}
	return strings.Join(sections, "\n\n")
}
