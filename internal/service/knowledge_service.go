// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/repository"
	"hexona-gpts-go/pkg/embedding"
	"hexona-gpts-go/pkg/es"
	"hexona-gpts-go/pkg/log"

	"github.com/google/uuid"
)

// KnowledgeService 负责助手知识库的写入与检索。
type KnowledgeService interface {
	// Retrieve 对某个助手的知识库做向量检索，返回通过分数阈值的分块。
	// 助手没有任何文档时直接返回空结果，不调用 embedding 服务。
	Retrieve(ctx context.Context, gptSlug, query string) ([]model.KnowledgeChunk, error)
	// IndexDocument 将文档切分、向量化并写入索引，返回文档元数据。
	IndexDocument(ctx context.Context, gptSlug, fileName, content string) (*model.KnowledgeDocument, error)
	ListDocuments(ctx context.Context, gptSlug string) ([]model.KnowledgeDocument, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

type knowledgeService struct {
	knowledgeRepo repository.KnowledgeRepository
	embedder      embedding.Client
	indexName     string
}

// NewKnowledgeService 创建一个新的 KnowledgeService 实例。
func NewKnowledgeService(knowledgeRepo repository.KnowledgeRepository, embedder embedding.Client, indexName string) KnowledgeService {
	return &knowledgeService{
		knowledgeRepo: knowledgeRepo,
		embedder:      embedder,
		indexName:     indexName,
	}
}

func (s *knowledgeService) Retrieve(ctx context.Context, gptSlug, query string) ([]model.KnowledgeChunk, error) {
	count, err := s.knowledgeRepo.CountBySlug(ctx, gptSlug)
	if err != nil {
		return nil, fmt.Errorf("count knowledge documents: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	vector, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	topK := config.Conf.Chat.KnowledgeTopK
	hits, err := es.SearchChunks(ctx, s.indexName, gptSlug, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	minScore := config.Conf.Chat.KnowledgeMinScore
	var kept []model.KnowledgeChunk
	for _, h := range hits {
		if h.Score > minScore {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

func (s *knowledgeService) IndexDocument(ctx context.Context, gptSlug, fileName, content string) (*model.KnowledgeDocument, error) {
	doc := &model.KnowledgeDocument{
		ID:       uuid.NewString(),
		GptSlug:  gptSlug,
		FileName: fileName,
		Content:  content,
	}
	if err := s.knowledgeRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create knowledge document: %w", err)
	}

	chunks := splitChunks(content, 1000, 100)
	indexed := 0
	for i, text := range chunks {
		vector, err := s.embedder.CreateEmbedding(ctx, text)
		if err != nil {
			log.Errorf("embed chunk %d of document %s failed: %v", i, doc.ID, err)
			continue
		}
		chunk := model.EsChunk{
			ChunkID:     fmt.Sprintf("%s_%d", doc.ID, i),
			DocumentID:  doc.ID,
			GptSlug:     gptSlug,
			ChunkIndex:  i,
			TextContent: text,
			Vector:      vector,
		}
		if err := es.IndexChunk(ctx, s.indexName, chunk); err != nil {
			log.Errorf("index chunk %d of document %s failed: %v", i, doc.ID, err)
			continue
		}
		indexed++
	}

	doc.ChunkCount = indexed
	if err := s.knowledgeRepo.UpdateChunkCount(ctx, doc.ID, indexed); err != nil {
		log.Errorf("update chunk count for document %s failed: %v", doc.ID, err)
	}
	return doc, nil
}

func (s *knowledgeService) ListDocuments(ctx context.Context, gptSlug string) ([]model.KnowledgeDocument, error) {
	return s.knowledgeRepo.ListBySlug(ctx, gptSlug)
}

func (s *knowledgeService) DeleteDocument(ctx context.Context, documentID string) error {
	if err := es.DeleteDocumentChunks(ctx, s.indexName, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return s.knowledgeRepo.Delete(ctx, documentID)
}

// splitChunks 按段落优先的方式切分文本，相邻分块保留 overlap 个字符的重叠。
func splitChunks(content string, chunkSize, overlap int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= chunkSize {
		return []string{content}
	}

	var chunks []string
	runes := []rune(content)
	step := chunkSize - overlap
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
