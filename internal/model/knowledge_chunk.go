// Package model 定义了与数据库表对应的 Go 结构体。
package model

// EsChunk 代表存储在 Elasticsearch 中的知识分块文档结构。
type EsChunk struct {
	ChunkID     string    `json:"chunk_id"` // 唯一标识，documentID + 序号
	DocumentID  string    `json:"document_id"`
	GptSlug     string    `json:"gpt_slug"`
	ChunkIndex  int       `json:"chunk_index"`
	TextContent string    `json:"text_content"`
	Vector      []float32 `json:"vector"` // 文本内容的向量表示
}

// KnowledgeChunk 是知识检索返回给聊天管线的结果。
type KnowledgeChunk struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"` // 余弦相似度换算的 0-1 相关度
}
