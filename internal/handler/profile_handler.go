package handler

import (
	"errors"
	"net/http"

	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/service"
	"hexona-gpts-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProfileHandler 负责机构画像与联系人档案的 API。
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler 创建一个新的 ProfileHandler 实例。
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GetAgencyProfile 返回当前用户的机构画像，未填写时返回空对象。
func (h *ProfileHandler) GetAgencyProfile(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	profile, err := h.profileService.GetAgencyProfile(c.Request.Context(), user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		log.Errorf("get agency profile failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SaveAgencyProfile 创建或整体覆盖当前用户的机构画像。
func (h *ProfileHandler) SaveAgencyProfile(c *gin.Context) {
	var input service.AgencyProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	user := c.MustGet("user").(*model.User)
	profile, err := h.profileService.SaveAgencyProfile(c.Request.Context(), user.ID, input)
	if err != nil {
		log.Errorf("save agency profile failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListClients 返回当前用户的全部联系人。
func (h *ProfileHandler) ListClients(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	clients, err := h.profileService.ListClients(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("list clients failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, clients)
}

// CreateClient 创建一个联系人。
func (h *ProfileHandler) CreateClient(c *gin.Context) {
	var input service.ClientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	user := c.MustGet("user").(*model.User)
	client, err := h.profileService.CreateClient(c.Request.Context(), user.ID, input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, client)
}

// UpdateClient 更新一个联系人。
func (h *ProfileHandler) UpdateClient(c *gin.Context) {
	var input service.ClientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	user := c.MustGet("user").(*model.User)
	client, err := h.profileService.UpdateClient(c.Request.Context(), user.ID, c.Param("id"), input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		log.Errorf("update client failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient 删除一个联系人。
func (h *ProfileHandler) DeleteClient(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	if err := h.profileService.DeleteClient(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		log.Errorf("delete client failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
