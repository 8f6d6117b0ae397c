// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/service"
	"hexona-gpts-go/pkg/extract"
	"hexona-gpts-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理流式聊天请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest 定义了聊天 API 的请求体结构。
// 附件在上传接口完成转写后由前端带回，这里只接收转写结果。
type ChatRequest struct {
	GptSlug        string               `json:"gptSlug"`
	ClientID       *string              `json:"clientId"`
	ConversationID string               `json:"conversationId"`
	Message        string               `json:"message"`
	Attachments    []extract.Attachment `json:"attachments"`
}

// Stream 处理一次对话并以 SSE 返回模型输出。
// 事件流：先下发 conversationId，随后逐 token 下发 content，
// 出错时下发一条 error，最后固定以 [DONE] 收尾。
func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.GptSlug == "" || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	user := c.MustGet("user").(*model.User)
	emitter := &sseEmitter{c: c}

	err := h.chatService.StreamResponse(c.Request.Context(), user, service.ChatRequest{
		GptSlug:        req.GptSlug,
		ClientID:       req.ClientID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Attachments:    req.Attachments,
	}, emitter)
	if err == nil {
		return
	}

	// 流已经开始后无法再改写状态码，只能断流
	if emitter.started {
		log.Errorf("chat stream aborted mid-flight: %v", err)
		return
	}

	switch {
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrGptUnavailable):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownGpt):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown GPT"})
	default:
		log.Errorf("chat request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// sseEmitter 把对话事件编码为 SSE 帧写入响应。
// 响应头推迟到第一个事件才写出，因此准入阶段的失败仍可返回普通 JSON。
type sseEmitter struct {
	c       *gin.Context
	started bool
}

func (e *sseEmitter) ensureHeaders() {
	if e.started {
		return
	}
	e.started = true
	header := e.c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	e.c.Writer.WriteHeader(http.StatusOK)
}

func (e *sseEmitter) send(payload interface{}) error {
	e.ensureHeaders()
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	e.c.Writer.Flush()
	return nil
}

func (e *sseEmitter) EmitConversationID(id string) error {
	return e.send(gin.H{"conversationId": id})
}

func (e *sseEmitter) EmitContent(token string) error {
	return e.send(gin.H{"content": token})
}

func (e *sseEmitter) EmitError(message string) error {
	return e.send(gin.H{"error": message})
}

func (e *sseEmitter) Done() error {
	e.ensureHeaders()
	if _, err := fmt.Fprint(e.c.Writer, "data: [DONE]\n\n"); err != nil {
		return err
	}
	e.c.Writer.Flush()
	return nil
}
