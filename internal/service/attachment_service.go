package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/pkg/extract"
	"hexona-gpts-go/pkg/log"
	"hexona-gpts-go/pkg/storage"

	"github.com/google/uuid"
)

// AttachmentService 处理聊天附件：原件归档到对象存储，文本转写
// 交给提取服务，转写结果由调用方内联进消息。
type AttachmentService interface {
	Process(ctx context.Context, userID uint, fileName string, size int64, reader io.Reader) (*extract.Attachment, string, error)
}

type attachmentService struct {
	extractClient *extract.Client
}

// NewAttachmentService 创建一个新的 AttachmentService 实例。
func NewAttachmentService(extractClient *extract.Client) AttachmentService {
	return &attachmentService{extractClient: extractClient}
}

// Process 归档并转写一个上传的附件，返回转写结果与原件的预签名地址。
// 归档失败不阻断转写，原件地址为空串。
func (a *attachmentService) Process(ctx context.Context, userID uint, fileName string, size int64, reader io.Reader) (*extract.Attachment, string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}

	objectName := fmt.Sprintf("attachments/%d/%s-%s", userID, uuid.NewString(), fileName)
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	bucket := config.Conf.MinIO.BucketName
	objectURL := ""
	if err := storage.PutObject(ctx, bucket, objectName, bytes.NewReader(data), size, contentType); err != nil {
		log.Errorf("archive attachment %s failed: %v", fileName, err)
	} else {
		objectURL, err = storage.GetPresignedURL(bucket, objectName, 24*time.Hour)
		if err != nil {
			log.Errorf("presign attachment %s failed: %v", objectName, err)
			objectURL = ""
		}
	}

	attachment, err := a.extractClient.Extract(bytes.NewReader(data), fileName)
	if err != nil {
		return nil, objectURL, fmt.Errorf("extract attachment text: %w", err)
	}
	return attachment, objectURL, nil
}
