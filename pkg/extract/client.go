// Package extract 提供了附件文本提取服务的客户端。
// 提取服务接收原始文件并返回纯文本转写，用于把附件内联进聊天消息。
package extract

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"hexona-gpts-go/internal/config"
)

// Attachment 是提取服务返回的附件转写结果。
type Attachment struct {
	Type          string `json:"type"` // document / voice_note / image
	FileName      string `json:"fileName"`
	ExtractedText string `json:"extractedText"`
}

// Client 是文本提取服务的客户端。
type Client struct {
	serverURL string
}

// NewClient 创建一个新的提取客户端实例。
func NewClient(cfg config.ExtractConfig) *Client {
	return &Client{serverURL: cfg.ServerURL}
}

// Extract 上传文件内容并返回转写结果。
func (c *Client) Extract(fileReader io.Reader, fileName string) (*Attachment, error) {
	contentType := detectMimeType(fileName)

	req, err := http.NewRequest("PUT", c.serverURL+"/extract", fileReader)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用提取服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("提取服务返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, fmt.Errorf("读取提取服务响应失败: %w", err)
	}

	return &Attachment{
		Type:          attachmentType(contentType),
		FileName:      fileName,
		ExtractedText: buf.String(),
	}, nil
}

// InlineHeader 返回附件内联进消息正文时的头部标记。
func (a *Attachment) InlineHeader() string {
	return fmt.Sprintf("[Attached %s: %s]", a.Type, a.FileName)
}

// detectMimeType 根据文件扩展名判断 Content-Type
func detectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

// attachmentType 把 MIME 大类映射为产品内的附件类型。
func attachmentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return "voice_note"
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	default:
		return "document"
	}
}
