package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"careline/internal/util"
	"careline/pkg/domain"
)

// memoryRule binds a memory type to its keyword family and fixed importance.
// Rules are checked in priority order; the first match wins.
type memoryRule struct {
	memType    domain.MemoryType
	importance int
	keywords   []string
}

var memoryRules = []memoryRule{
	{domain.MemoryBreakthroughMoment, 9, []string{
		"breakthrough", "progress", "milestone", "opened up", "first time",
	}},
	{domain.MemoryWarningSign, 8, []string{
		"warning", "self-harm", "danger", "risk", "abuse", "unsafe", "suicid",
	}},
	{domain.MemoryEffectiveTechnique, 7, []string{
		"technique", "worked well", "effective", "responded well", "helped",
	}},
	{domain.MemoryChildPreference, 6, []string{
		"prefers", "likes", "enjoys", "favorite", "dislikes",
	}},
	{domain.MemoryCulturalReference, 5, []string{
		"festival", "tradition", "cultural", "religion", "custom",
	}},
	{domain.MemoryImportantInsight, 4, []string{
		"insight", "realized", "important", "understand", "noticed",
	}},
}

// classifyMemory scans text for the fixed keyword families and returns the
// highest-priority matching type with its importance score.
func classifyMemory(text string) (domain.MemoryType, int, bool) {
	lowered := strings.ToLower(text)
	for _, rule := range memoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.memType, rule.importance, true
			}
		}
	}
	return "", 0, false
}

// extractMemory records at most one memory row for a chat exchange. It is
// best-effort: every failure is logged and swallowed so it can never affect
// the chat response.
func (a *App) extractMemory(ctx context.Context, conversation domain.Conversation, userText, assistantText string) {
	logger := util.LoggerFromContext(ctx)
	memType, importance, ok := classifyMemory(userText + "\n" + assistantText)
	if !ok {
		return
	}
	memory := domain.ConversationMemory{
		ID:          uuid.NewString(),
		ChildID:     conversation.ChildID,
		VolunteerID: conversation.VolunteerID,
		SessionID:   conversation.SessionID,
		Type:        memType,
		Content:     strings.TrimSpace(userText),
		Importance:  importance,
		Tags:        []string{strings.ToLower(string(memType))},
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.CreateMemory(memory); err != nil {
		logger.Warn("memory extraction store failed",
			"conversation_id", conversation.ID,
			"memory_type", string(memType),
			"error", err)
	}
}
