package handler

import (
	"net/http"

	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/service"
	"hexona-gpts-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// 单个附件的大小上限
const maxAttachmentSize = 20 << 20 // 20 MB

// AttachmentHandler 处理聊天附件上传与转写。
type AttachmentHandler struct {
	attachmentService service.AttachmentService
}

// NewAttachmentHandler 创建一个新的 AttachmentHandler 实例。
func NewAttachmentHandler(attachmentService service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// Upload 接收一个附件，归档原件并返回文本转写结果。
// 前端拿到转写后把它放进聊天请求的 attachments 字段。
func (h *AttachmentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxAttachmentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large (max 20MB)"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open uploaded file"})
		return
	}
	defer file.Close()

	user := c.MustGet("user").(*model.User)
	attachment, objectURL, err := h.attachmentService.Process(c.Request.Context(), user.ID, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		log.Errorf("process attachment %s failed: %v", fileHeader.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Attachment processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attachment": attachment,
		"objectUrl":  objectURL,
	})
}
