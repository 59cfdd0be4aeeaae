package memory

import (
	"context"
	"fmt"
	"sync"

	lcmemory "github.com/tmc/langchaingo/memory"
	"github.com/tmc/langchaingo/schema"
)

// Префиксы ролей в тексте истории.
const (
	HumanPrefix = "Human"
	AIPrefix    = "AI"

	inputKey  = "input"
	outputKey = "output"
)

// Buffer хранит последние K пар реплик (Human, AI) в порядке поступления.
// При добавлении пары сверх ёмкости самая старая вытесняется (FIFO).
// Буфер нужен только для сборки контекста промпта и не является источником истины.
type Buffer struct {
	mu     sync.Mutex
	size   int
	window *lcmemory.ConversationWindowBuffer
}

// NewBuffer создаёт буфер на size пар. size == 0 означает, что история не хранится.
func NewBuffer(size int) *Buffer {
	if size < 0 {
		size = 0
	}
	return &Buffer{
		size: size,
		window: lcmemory.NewConversationWindowBuffer(size,
			lcmemory.WithInputKey(inputKey),
			lcmemory.WithOutputKey(outputKey),
			lcmemory.WithHumanPrefix(HumanPrefix),
			lcmemory.WithAIPrefix(AIPrefix),
		),
	}
}

// Size возвращает ёмкость буфера в парах, заданную при создании.
func (b *Buffer) Size() int {
	return b.size
}

// Save добавляет пару реплик. Окно само вытесняет пары сверх ёмкости.
func (b *Buffer) Save(ctx context.Context, human, ai string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.window.SaveContext(ctx,
		map[string]any{inputKey: human},
		map[string]any{outputKey: ai},
	); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// Messages возвращает копию сообщений буфера, от старых к новым.
func (b *Buffer) Messages(ctx context.Context) ([]schema.ChatMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs, err := b.window.ChatHistory.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	out := make([]schema.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Turns возвращает число пар в буфере.
func (b *Buffer) Turns(ctx context.Context) (int, error) {
	msgs, err := b.Messages(ctx)
	if err != nil {
		return 0, err
	}
	return len(msgs) / 2, nil
}

// History рендерит буфер в текст вида "Human: ...\nAI: ...".
func (b *Buffer) History(ctx context.Context) (string, error) {
	msgs, err := b.Messages(ctx)
	if err != nil {
		return "", err
	}
	return schema.GetBufferString(msgs, HumanPrefix, AIPrefix)
}
