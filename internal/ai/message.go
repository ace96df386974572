package ai

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Message 一条对话消息
// Content 为 string（纯文本）或 []Part（图文混合），与 OpenAI 兼容协议一致
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Part 图文消息的一个分片
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL 图片分片的载体（data URL 或远程地址）
type ImageURL struct {
	URL string `json:"url"`
}

// TextPart 构造文本分片
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// ImagePart 读取本地图片并构造 base64 data URL 分片
func ImagePart(path string) (Part, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Part{}, fmt.Errorf("read image %s: %w", path, err)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "jpg" {
		ext = "jpeg"
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return Part{
		Type:     "image_url",
		ImageURL: &ImageURL{URL: fmt.Sprintf("data:image/%s;base64,%s", ext, encoded)},
	}, nil
}

// SystemMessage 构造系统消息
func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserText 构造纯文本用户消息
func UserText(content string) Message {
	return Message{Role: "user", Content: content}
}

// UserParts 构造图文混合用户消息
func UserParts(parts []Part) Message {
	return Message{Role: "user", Content: parts}
}

// AssistantMessage 构造助手消息
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}
