// Package llm wraps an OpenAI-compatible API for embeddings and chat
// completion, and keeps the small ring-buffer conversation memory generate()
// uses (§4.10).
package llm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wl4g-collab/botwaf-go/internal/domain/knowledge"
)

// Config configures the OpenAI-compatible client (§6 services.llm).
type Config struct {
	APIURI         string
	APIKey         string
	OrgID          string
	ProjectID      string
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float32
	CandidateCount int
	TopK           int
	TopP           float32
	SystemPrompt   string
}

// memoryWindow bounds how many prior turns generate() keeps in context,
// matching the "last-100-turn window" the spec carries over from the
// original's WindowBufferMemory without pulling in a full LangChain port.
const memoryWindow = 100

// Client wraps go-openai for embeddings and RAG-style chat generation.
type Client struct {
	inner  *openai.Client
	cfg    Config
	mu     sync.Mutex
	memory []openai.ChatCompletionMessage
}

var (
	_ knowledge.Embedder  = (*Client)(nil)
	_ knowledge.Generator = (*Client)(nil)
)

// New builds a Client against cfg.APIURI (OpenAI itself, or any
// OpenAI-compatible endpoint).
func New(cfg Config) *Client {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURI != "" {
		oaCfg.BaseURL = cfg.APIURI
	}
	if cfg.OrgID != "" {
		oaCfg.OrgID = cfg.OrgID
	}
	return &Client{inner: openai.NewClientWithConfig(oaCfg), cfg: cfg}
}

// Embed implements knowledge.Embedder using the configured embedding model.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.inner.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create embeddings: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Generate runs a single RAG turn: system prompt + retrieved documents +
// the user prompt, appended to the rolling memory window, and returns the
// assistant's reply.
func (c *Client) Generate(ctx context.Context, prompt string, retrieved []knowledge.ScoredDocument) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]openai.ChatCompletionMessage, 0, len(c.memory)+len(retrieved)+2)
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.cfg.SystemPrompt,
		})
	}
	for _, doc := range retrieved {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "context: " + doc.Document.Content,
		})
	}
	messages = append(messages, c.memory...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		N:           max(1, c.cfg.CandidateCount),
	}

	resp, err := c.inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: chat completion returned no choices")
	}
	reply := resp.Choices[0].Message

	c.memory = append(c.memory, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}, reply)
	if len(c.memory) > memoryWindow {
		c.memory = c.memory[len(c.memory)-memoryWindow:]
	}

	return reply.Content, nil
}

// IngestFile runs the embedding(upload_info, file) operation (§9): it walks
// info through RECEIVED -> PERSISTING -> PREPARING -> EMBEDDING ->
// EMBEDDED|FAILED, parsing file line by line, skipping lines that are empty
// after trimming, and embedding the rest into store under the namespace
// info.Category selects. info is mutated in place and also returned so
// callers can inspect the final status after an error.
func (c *Client) IngestFile(ctx context.Context, store knowledge.Store, info *knowledge.UploadInfo, file io.Reader, logger *slog.Logger) (*knowledge.UploadInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info.Status = knowledge.StatusReceived
	logger.Info("knowledge upload received", "id", info.ID, "name", info.Name)

	// PERSISTING would record info to an upload table and back up the raw
	// file to object storage; neither has a component in this repo to wire
	// to (§11 excludes file-upload HTTP endpoints), so the transition is
	// observed without side effects, matching the original's TODO stubs.
	info.Status = knowledge.StatusPersisting

	info.Status = knowledge.StatusPreparing
	docs, err := parseUploadLines(file, info)
	if err != nil {
		info.Status = knowledge.StatusFailed
		return info, fmt.Errorf("llm: prepare upload %s: %w", info.ID, err)
	}
	info.Lines = len(docs)

	info.Status = knowledge.StatusEmbedding
	logger.Info("knowledge upload embedding", "id", info.ID, "lines", info.Lines, "namespace", info.Category.Namespace())

	if _, err := store.Upsert(ctx, docs); err != nil {
		info.Status = knowledge.StatusFailed
		logger.Error("knowledge upload embedding failed", "id", info.ID, "error", err)
		return info, fmt.Errorf("llm: embed upload %s: %w", info.ID, err)
	}

	info.Status = knowledge.StatusEmbedded
	logger.Info("knowledge upload embedding success", "id", info.ID)
	return info, nil
}

// parseUploadLines scans file line by line, skipping lines empty after
// trimming, and builds one Document per remaining line with per-line
// metadata (source, filename, line number, merged upload labels).
func parseUploadLines(file io.Reader, info *knowledge.UploadInfo) ([]knowledge.Document, error) {
	var docs []knowledge.Document
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		content := scanner.Text()
		if strings.TrimSpace(content) == "" {
			continue
		}

		metadata := map[string]string{
			"source":   "uploaded_file",
			"filename": info.Name,
			"line":     strconv.Itoa(lineNum),
		}
		for k, v := range info.Labels {
			metadata[k] = v
		}

		docs = append(docs, knowledge.Document{
			Content:   content,
			Metadata:  metadata,
			Namespace: info.Category.Namespace(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan uploaded file: %w", err)
	}
	return docs, nil
}
