package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"hexona-gpts-go/internal/service"
	"hexona-gpts-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminHandler 负责后台管理 API：用户、助手配置、知识库与用量看板。
type AdminHandler struct {
	adminService     service.AdminService
	knowledgeService service.KnowledgeService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService, knowledgeService service.KnowledgeService) *AdminHandler {
	return &AdminHandler{
		adminService:     adminService,
		knowledgeService: knowledgeService,
	}
}

// ListUsers 分页返回用户列表。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	resp, err := h.adminService.ListUsers(page, size)
	if err != nil {
		log.Errorf("list users failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateUserRequest 定义了用户管理 API 的请求体结构。
type UpdateUserRequest struct {
	IsActive *bool   `json:"isActive"`
	Role     *string `json:"role"`
}

// UpdateUser 修改用户的激活状态或角色。
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if req.IsActive != nil {
		if err := h.adminService.SetUserActive(uint(userID), *req.IsActive); err != nil {
			h.respondUserUpdateError(c, err)
			return
		}
	}
	if req.Role != nil {
		if err := h.adminService.SetUserRole(uint(userID), *req.Role); err != nil {
			h.respondUserUpdateError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) respondUserUpdateError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	log.Errorf("update user failed: %v", err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// ListGpts 返回全部助手及其生效配置。
func (h *AdminHandler) ListGpts(c *gin.Context) {
	items, err := h.adminService.ListGpts(c.Request.Context())
	if err != nil {
		log.Errorf("list gpts failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetGpt 返回单个助手的覆盖配置与默认提示词。
func (h *AdminHandler) GetGpt(c *gin.Context) {
	cfg, defaultPrompt, err := h.adminService.GetGptConfig(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownGpt) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown GPT"})
			return
		}
		log.Errorf("get gpt config failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"config":        cfg,
		"defaultPrompt": defaultPrompt,
	})
}

// UpdateGpt 写入助手的覆盖配置。
func (h *AdminHandler) UpdateGpt(c *gin.Context) {
	var input service.GptConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	cfg, err := h.adminService.UpdateGptConfig(c.Request.Context(), c.Param("slug"), input)
	if err != nil {
		if errors.Is(err, service.ErrUnknownGpt) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown GPT"})
			return
		}
		log.Errorf("update gpt config failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ListKnowledge 返回助手的知识库文档列表。
func (h *AdminHandler) ListKnowledge(c *gin.Context) {
	docs, err := h.knowledgeService.ListDocuments(c.Request.Context(), c.Param("slug"))
	if err != nil {
		log.Errorf("list knowledge documents failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, docs)
}

// UploadKnowledge 上传一份知识库文档并触发切分索引。
func (h *AdminHandler) UploadKnowledge(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open uploaded file"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}

	doc, err := h.knowledgeService.IndexDocument(c.Request.Context(), c.Param("slug"), fileHeader.Filename, string(content))
	if err != nil {
		log.Errorf("index knowledge document failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Indexing failed"})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// DeleteKnowledge 删除一份知识库文档及其全部分块。
func (h *AdminHandler) DeleteKnowledge(c *gin.Context) {
	if err := h.knowledgeService.DeleteDocument(c.Request.Context(), c.Param("docId")); err != nil {
		log.Errorf("delete knowledge document failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Analytics 返回用量看板数据。summary=true 时只返回概览数字。
func (h *AdminHandler) Analytics(c *gin.Context) {
	days := 30
	switch c.DefaultQuery("period", "30d") {
	case "7d":
		days = 7
	case "90d":
		days = 90
	}
	since := time.Now().AddDate(0, 0, -days)

	if c.Query("summary") == "true" {
		summary, err := h.adminService.AnalyticsSummary(c.Request.Context(), since)
		if err != nil {
			log.Errorf("analytics summary failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}

	report, err := h.adminService.AnalyticsReport(c.Request.Context(), since)
	if err != nil {
		log.Errorf("analytics report failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, report)
}
