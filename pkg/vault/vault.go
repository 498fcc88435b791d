// Package vault ties the memory store, the chat model, and the session
// history into one front door: add and search memories, chat with them as
// context, and distill finished conversations back into new memories.
package vault

import (
	"context"
	"fmt"

	"github.com/memvault/memvault/pkg/llm"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/observability/logging"
)

// Vault is the primary interface for the memory system.
type Vault struct {
	store   memory.Store
	model   llm.LLM
	history *ChatHistory
}

// New builds a vault over the given store. The model may be nil; chat and
// extraction then return an error while plain memory operations keep
// working.
func New(store memory.Store, model llm.LLM) (*Vault, error) {
	if store == nil {
		return nil, fmt.Errorf("vault requires a memory store")
	}
	return &Vault{
		store:   store,
		model:   model,
		history: NewChatHistory(""),
	}, nil
}

// Open prepares the underlying store.
func (v *Vault) Open(ctx context.Context) error { return v.store.Open(ctx) }

// Close releases the underlying store.
func (v *Vault) Close() error { return v.store.Close() }

// Store exposes the underlying memory store.
func (v *Vault) Store() memory.Store { return v.store }

// History exposes the session chat history.
func (v *Vault) History() *ChatHistory { return v.history }

// Add stores one memory per text, all sharing the given metadata, and
// returns the new ids.
func (v *Vault) Add(ctx context.Context, texts []string, meta memory.Metadata) ([]string, error) {
	items := make([]*memory.Item, len(texts))
	for i, text := range texts {
		items[i] = memory.NewItem(text, meta)
	}
	return v.store.Add(ctx, items)
}

// AddItems stores prepared items.
func (v *Vault) AddItems(ctx context.Context, items []*memory.Item) ([]string, error) {
	return v.store.Add(ctx, items)
}

// Search returns the topK memories most relevant to the query.
func (v *Vault) Search(ctx context.Context, query string, topK int, filter map[string]string) ([]memory.SearchResult, error) {
	return v.store.Search(ctx, query, topK, filter)
}

// Get returns the memory with the given id, or (nil, nil) when absent.
func (v *Vault) Get(ctx context.Context, id string) (*memory.Item, error) {
	return v.store.Get(ctx, id)
}

// GetAll returns every stored memory.
func (v *Vault) GetAll(ctx context.Context) ([]*memory.Item, error) {
	return v.store.GetAll(ctx)
}

// Update replaces the text and metadata of an existing memory.
func (v *Vault) Update(ctx context.Context, id string, item *memory.Item) error {
	return v.store.Update(ctx, id, item)
}

// Delete removes the memories with the given ids.
func (v *Vault) Delete(ctx context.Context, ids []string) error {
	return v.store.Delete(ctx, ids)
}

// DeleteAll removes every stored memory.
func (v *Vault) DeleteAll(ctx context.Context) error {
	return v.store.DeleteAll(ctx)
}

// Count returns the number of stored memories.
func (v *Vault) Count(ctx context.Context) (int, error) {
	return v.store.Count(ctx)
}

// Dump saves the memories into the given directory.
func (v *Vault) Dump(ctx context.Context, dir string) error {
	return v.store.Dump(ctx, dir)
}

// Load merges previously dumped memories from the given directory.
func (v *Vault) Load(ctx context.Context, dir string) error {
	return v.store.Load(ctx, dir)
}

// ChatOptions tune a single Chat call.
type ChatOptions struct {
	// TopK is the number of memories retrieved as context. Zero means 5.
	TopK int

	// SystemPrompt overrides the default prompt. It must contain one %s
	// verb, which receives the memories section.
	SystemPrompt string

	// ExcludeHistory leaves prior session turns out of the request.
	ExcludeHistory bool
}

// Chat answers the query with the topK most relevant memories as context
// and records both turns in the session history.
func (v *Vault) Chat(ctx context.Context, query string, opts ChatOptions) (string, error) {
	if v.model == nil {
		return "", fmt.Errorf("vault has no chat model configured")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	results, err := v.store.Search(ctx, query, topK, nil)
	if err != nil {
		return "", fmt.Errorf("retrieve chat context: %w", err)
	}

	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = chatSystemPrompt
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(prompt, renderMemoriesSection(results))},
	}
	if !opts.ExcludeHistory {
		messages = append(messages, v.history.Messages(0)...)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	response, err := v.model.Generate(ctx, messages)
	if err != nil {
		return "", err
	}

	v.history.AddUserMessage(query)
	v.history.AddAssistantMessage(response)
	logging.Debugf("vault: chat answered with %d memories as context", len(results))
	return response, nil
}

// ClearChatHistory drops the session history.
func (v *Vault) ClearChatHistory() {
	v.history.Clear()
	logging.Debugf("vault: chat history cleared")
}
