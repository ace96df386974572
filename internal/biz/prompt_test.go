package biz

import (
	"strings"
	"testing"
)

func TestNormalizePageText_PlainText(t *testing.T) {
	got := NormalizePageText("  hello   world\n\nfoo  ")
	if got != "hello world foo" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizePageText_HTML(t *testing.T) {
	page := `<html><head><title>t</title><style>body{color:red}</style></head>
<body><script>var x = 1;</script><h1>标题</h1><p>` + strings.Repeat("这是正文内容。", 20) + `</p></body></html>`

	got := NormalizePageText(page)
	if strings.Contains(got, "<") || strings.Contains(got, "var x") || strings.Contains(got, "color:red") {
		t.Fatalf("html residue in %q", got)
	}
	if !strings.Contains(got, "标题") || !strings.Contains(got, "这是正文内容。") {
		t.Fatalf("content lost: %q", got)
	}
}

func TestNormalizePageText_Empty(t *testing.T) {
	if got := NormalizePageText("   "); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestTruncatePageText_ShortUnchanged(t *testing.T) {
	text := "短文本。"
	if got := TruncatePageText(text); got != text {
		t.Fatalf("got %q", got)
	}
}

func TestTruncatePageText_BreaksAtSentence(t *testing.T) {
	// 每句 10 个字符，3000 上限落在句中，应回退到上一个句号
	sentence := "一二三四五六七八九。"
	text := strings.Repeat(sentence, 350)

	got := TruncatePageText(text)
	if len([]rune(got)) > 3000 {
		t.Fatalf("truncated length %d exceeds limit", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "。") {
		t.Fatalf("expected sentence-mark suffix, got %q", got[len(got)-12:])
	}
}

func TestBuildSummarizePrompt(t *testing.T) {
	got := BuildSummarizePrompt("page content here with enough text")
	if !strings.HasPrefix(got, "请总结以下网页内容，提取关键信息：\n\n") {
		t.Fatalf("got %q", got)
	}

	if got := BuildSummarizePrompt(""); got != "无法获取页面内容，请确保页面已加载完成。" {
		t.Fatalf("empty page prompt = %q", got)
	}
}

func TestBuildExplainAndTranslatePrompts(t *testing.T) {
	if got := BuildExplainPrompt("term"); got != "请解释以下文本：\n\nterm" {
		t.Fatalf("explain = %q", got)
	}
	if got := BuildTranslatePrompt("hello"); got != "请翻译以下文本：\n\nhello" {
		t.Fatalf("translate = %q", got)
	}
}

func TestAppendCitedPages(t *testing.T) {
	got := AppendCitedPages("问题", []CitedPage{
		{URL: "https://a.example", Content: "正文A"},
		{URL: "https://b.example", Content: ""},
	})
	if !strings.HasPrefix(got, "问题\n\n") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "引用网页 [https://a.example] 的内容：\n正文A") {
		t.Fatalf("missing cited section: %q", got)
	}
	if !strings.Contains(got, "[页面内容未获取]") {
		t.Fatalf("missing placeholder for empty content: %q", got)
	}

	if got := AppendCitedPages("纯文本", nil); got != "纯文本" {
		t.Fatalf("got %q", got)
	}
}
