package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/memvault/memvault/pkg/llm"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/observability/logging"
)

// extractedMemory is one entry of the model's extraction output.
type extractedMemory struct {
	Memory string `json:"memory"`
	Type   string `json:"type"`
}

// Remember distills a conversation into self-contained memories using the
// chat model and stores them with source "conversation". It returns the
// ids of the stored memories; an empty result means the model found
// nothing worth keeping.
func (v *Vault) Remember(ctx context.Context, conversation []llm.Message) ([]string, error) {
	if v.model == nil {
		return nil, fmt.Errorf("vault has no chat model configured")
	}
	if len(conversation) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(extractionPrompt, renderConversation(conversation))
	raw, err := v.model.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("extract memories: %w", err)
	}

	extracted, err := parseExtractedMemories(raw)
	if err != nil {
		return nil, err
	}
	if len(extracted) == 0 {
		logging.Debugf("vault: extraction produced no memories")
		return nil, nil
	}

	items := make([]*memory.Item, len(extracted))
	for i, e := range extracted {
		items[i] = memory.NewItem(e.Memory, memory.Metadata{
			Type:   e.Type,
			Source: memory.SourceConversation,
		})
	}
	ids, err := v.store.Add(ctx, items)
	if err != nil {
		return nil, err
	}
	logging.Infof("vault: remembered %d memories from conversation", len(ids))
	return ids, nil
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// parseExtractedMemories parses the model output, tolerating markdown
// code fences, and drops entries with blank text.
func parseExtractedMemories(content string) ([]extractedMemory, error) {
	content = strings.TrimSpace(content)
	if matches := codeBlockRe.FindStringSubmatch(content); len(matches) > 1 {
		content = strings.TrimSpace(matches[1])
	}
	if content == "" || content == "[]" {
		return nil, nil
	}

	var parsed []extractedMemory
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse extraction output: %w", err)
	}
	valid := parsed[:0]
	for _, e := range parsed {
		e.Memory = strings.TrimSpace(e.Memory)
		if e.Memory == "" {
			continue
		}
		valid = append(valid, e)
	}
	return valid, nil
}
