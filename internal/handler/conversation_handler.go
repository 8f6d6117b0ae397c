package handler

import (
	"errors"
	"net/http"
	"strconv"

	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/service"
	"hexona-gpts-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ConversationHandler 负责处理会话查询与删除请求。
type ConversationHandler struct {
	conversationService service.ConversationService
	memoryService       service.MemoryService
}

// NewConversationHandler 创建一个新的 ConversationHandler 实例。
func NewConversationHandler(conversationService service.ConversationService, memoryService service.MemoryService) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		memoryService:       memoryService,
	}
}

// List 返回当前用户的会话列表，可按助手或联系人过滤。
func (h *ConversationHandler) List(c *gin.Context) {
	user := c.MustGet("user").(*model.User)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	items, err := h.conversationService.List(c.Request.Context(), user.ID, c.Query("gptSlug"), c.Query("clientId"), limit)
	if err != nil {
		log.Errorf("list conversations failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// Get 返回一个会话及其全部消息。
func (h *ConversationHandler) Get(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	detail, err := h.conversationService.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		log.Errorf("get conversation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Delete 删除一个会话及其消息。
func (h *ConversationHandler) Delete(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	err := h.conversationService.Delete(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		log.Errorf("delete conversation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SummarizeRequest 定义了手动触发摘要 API 的请求体结构。
type SummarizeRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	GptSlug        string `json:"gptSlug" binding:"required"`
}

// Summarize 对整段会话做一次性摘要，通常在切走会话前由前端触发。
func (h *ConversationHandler) Summarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	user := c.MustGet("user").(*model.User)
	// 先校验归属，摘要写入跨越用户边界是不可接受的
	if _, err := h.conversationService.Get(c.Request.Context(), user.ID, req.ConversationID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	if err := h.memoryService.SummarizeFull(c.Request.Context(), user.ID, req.GptSlug, req.ConversationID); err != nil {
		log.Errorf("summarize conversation %s failed: %v", req.ConversationID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Summarization failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
