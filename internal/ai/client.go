package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Usage 服务商在流末尾返回的 token 用量汇总
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Delta 流式响应的一个增量
// 正文、思考过程和终态用量在服务商边界一次性解码为显式可选字段
type Delta struct {
	Content   string
	Reasoning string
	Usage     *Usage
}

// ChatStreamRequest 流式对话请求
type ChatStreamRequest struct {
	Model          string
	Messages       []Message
	Temperature    float64
	MaxTokens      int
	EnableThinking bool // 深度思考：附带 reasoning 增量流
	EnableSearch   bool // 联网搜索：服务商先检索再回答
}

// Client OpenAI 兼容服务商客户端
type Client struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type chatStreamBody struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Stream         bool           `json:"stream"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	StreamOptions  *streamOptions `json:"stream_options,omitempty"`
	EnableThinking bool           `json:"enable_thinking,omitempty"`
	EnableSearch   bool           `json:"enable_search,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type fileCreateResp struct {
	ID string `json:"id"`
}

// NewClient 创建服务商客户端
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// StreamChat 发起流式对话，增量经 channel 按产生顺序送出
// 终态用量随最后一个 Delta 的 Usage 字段给出；错误经 errs 送出且之后不再有增量
func (c *Client) StreamChat(ctx context.Context, req ChatStreamRequest) (<-chan Delta, <-chan error) {
	deltas := make(chan Delta, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errs)

		if c.Client == nil {
			errs <- errors.New("ai: http client is nil")
			return
		}
		if strings.TrimSpace(c.APIKey) == "" {
			errs <- errors.New("ai: api key is required")
			return
		}
		model := strings.TrimSpace(req.Model)
		if model == "" {
			errs <- errors.New("ai: model is required")
			return
		}

		body := chatStreamBody{
			Model:          model,
			Messages:       req.Messages,
			Stream:         true,
			Temperature:    req.Temperature,
			MaxTokens:      req.MaxTokens,
			StreamOptions:  &streamOptions{IncludeUsage: true},
			EnableThinking: req.EnableThinking,
			EnableSearch:   req.EnableSearch,
		}

		b, err := json.Marshal(body)
		if err != nil {
			errs <- err
			return
		}

		url := fmt.Sprintf("%s/chat/completions", c.BaseURL)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			errs <- err
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

		// 流式响应时长由服务商侧决定，客户端整体超时在这里不适用
		httpClient := c.Client
		if httpClient.Timeout != 0 {
			clone := *httpClient
			clone.Timeout = 0
			httpClient = &clone
		}

		resp, err := httpClient.Do(httpReq)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
			msg := strings.TrimSpace(string(body))
			if msg == "" {
				msg = fmt.Sprintf("status %d", resp.StatusCode)
			}
			errs <- fmt.Errorf("ai: %s", msg)
			return
		}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				errs <- err
				return
			}
			if chunk.Error != nil && chunk.Error.Message != "" {
				errs <- errors.New(chunk.Error.Message)
				return
			}

			d := Delta{Usage: chunk.Usage}
			if len(chunk.Choices) > 0 {
				d.Content = chunk.Choices[0].Delta.Content
				d.Reasoning = chunk.Choices[0].Delta.ReasoningContent
			}
			if d.Content != "" || d.Reasoning != "" || d.Usage != nil {
				deltas <- d
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
			return
		}
	}()

	return deltas, errs
}

// UploadFile 上传本地文件，返回服务商侧文件句柄（fileid）
func (c *Client) UploadFile(ctx context.Context, path, purpose string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", purpose); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/files", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("ai: upload: %s", msg)
	}

	var decoded fileCreateResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", errors.New("ai: upload: empty file id")
	}
	return decoded.ID, nil
}
