package service

import (
	"context"
	"strings"
	"testing"

	"hexona-gpts-go/internal/model"

	"gorm.io/gorm"
)

type fakeKnowledgeRepo struct {
	docs map[string]*model.KnowledgeDocument
}

func newFakeKnowledgeRepo() *fakeKnowledgeRepo {
	return &fakeKnowledgeRepo{docs: map[string]*model.KnowledgeDocument{}}
}

func (r *fakeKnowledgeRepo) Create(_ context.Context, doc *model.KnowledgeDocument) error {
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *fakeKnowledgeRepo) FindByID(_ context.Context, id string) (*model.KnowledgeDocument, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return doc, nil
}

func (r *fakeKnowledgeRepo) ListBySlug(_ context.Context, gptSlug string) ([]model.KnowledgeDocument, error) {
	var out []model.KnowledgeDocument
	for _, d := range r.docs {
		if d.GptSlug == gptSlug {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeKnowledgeRepo) CountBySlug(_ context.Context, gptSlug string) (int64, error) {
	var n int64
	for _, d := range r.docs {
		if d.GptSlug == gptSlug {
			n++
		}
	}
	return n, nil
}

func (r *fakeKnowledgeRepo) UpdateChunkCount(_ context.Context, id string, chunkCount int) error {
	if doc, ok := r.docs[id]; ok {
		doc.ChunkCount = chunkCount
	}
	return nil
}

func (r *fakeKnowledgeRepo) Delete(_ context.Context, id string) error {
	delete(r.docs, id)
	return nil
}

// failingEmbedder 用于断言空知识库不会触发 embedding 调用。
type failingEmbedder struct{ called bool }

func (e *failingEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	e.called = true
	return nil, errTestBackend
}

func TestRetrieveSkipsEmptyKnowledgeBase(t *testing.T) {
	embedder := &failingEmbedder{}
	svc := NewKnowledgeService(newFakeKnowledgeRepo(), embedder, "knowledge_chunks")

	chunks, err := svc.Retrieve(context.Background(), "sales", "how do I price this?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected no chunks, got %v", chunks)
	}
	if embedder.called {
		t.Error("embedding service must not be called when the gpt has no documents")
	}
}

func TestSplitChunks(t *testing.T) {
	t.Run("short content stays whole", func(t *testing.T) {
		chunks := splitChunks("a short document", 1000, 100)
		if len(chunks) != 1 || chunks[0] != "a short document" {
			t.Errorf("chunks = %v", chunks)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		if chunks := splitChunks("   \n ", 1000, 100); chunks != nil {
			t.Errorf("expected nil, got %v", chunks)
		}
	})

	t.Run("long content overlaps", func(t *testing.T) {
		content := strings.Repeat("abcdefghij", 250) // 2500 字符
		chunks := splitChunks(content, 1000, 100)
		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d", len(chunks))
		}
		for i, c := range chunks[:2] {
			if len(c) != 1000 {
				t.Errorf("chunk %d length = %d, want 1000", i, len(c))
			}
		}
		// 相邻分块共享末尾 100 字符
		if chunks[0][900:] != chunks[1][:100] {
			t.Error("chunks do not overlap by 100 chars")
		}
	})
}
