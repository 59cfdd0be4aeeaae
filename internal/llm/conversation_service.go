package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatmemory/internal/memory"
	"chatmemory/internal/storage"

	"github.com/google/uuid"
)

const (
	// MessageTypeConversation единственный тип ответа сервиса.
	MessageTypeConversation = "conversation"

	chatNameLength = 40
)

// ErrModelUnavailable клиент модели не инициализирован (например, нет ключа API).
var ErrModelUnavailable = errors.New("AI model not initialized, check GROQ_API_KEY")

// GenerateRequest входные данные одного запроса генерации.
type GenerateRequest struct {
	Prompt     string
	SessionID  string // если пусто, генерируется новый
	MaxHistory *int   // если nil, используется значение по умолчанию
}

// Reply отформатированный ответ модели.
type Reply struct {
	Response    string
	MessageType string
	SessionID   string
	Timestamp   time.Time
	Code        string
}

// ConversationService связывает кэш памяти сессий, журнал сообщений и модель.
// Буфер в памяти нужен только для контекста промпта, полная история живёт в store.
type ConversationService struct {
	generator         Generator
	modelName         string
	store             storage.Store
	cache             *memory.Cache
	defaultMaxHistory int
	logger            *slog.Logger
	now               func() time.Time
	newID             func() string
}

// ConversationServiceConfig конфигурация для создания ConversationService.
type ConversationServiceConfig struct {
	Generator         Generator // nil, если модель недоступна
	ModelName         string    // имя модели из конфигурации, известно и без генератора
	Store             storage.Store
	Cache             *memory.Cache
	DefaultMaxHistory int
	Logger            *slog.Logger
}

// NewConversationService создаёт сервис диалогов.
func NewConversationService(cfg ConversationServiceConfig) *ConversationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationService{
		generator:         cfg.Generator,
		modelName:         cfg.ModelName,
		store:             cfg.Store,
		cache:             cfg.Cache,
		defaultMaxHistory: cfg.DefaultMaxHistory,
		logger:            logger,
		now:               time.Now,
		newID:             uuid.NewString,
	}
}

// ConfiguredModel возвращает имя модели из конфигурации.
func (s *ConversationService) ConfiguredModel() string {
	if s.modelName == "" {
		return s.Model()
	}
	return s.modelName
}

// Model возвращает имя модели или пустую строку, если модель не настроена.
func (s *ConversationService) Model() string {
	if s.generator == nil {
		return ""
	}
	return s.generator.Model()
}

// Generate выполняет один шаг разговора:
//   - сохраняет реплику пользователя в журнал;
//   - находит или создаёт буфер сессии в кэше;
//   - для новой записи кэша запоминает имя чата (best-effort);
//   - отправляет модели промпт с историей буфера;
//   - кладёт пару реплик в буфер и ответ модели в журнал.
//
// Ошибка модели оставляет реплику пользователя в журнале, а буфер нетронутым.
func (s *ConversationService) Generate(ctx context.Context, req GenerateRequest) (Reply, error) {
	if s.generator == nil {
		return Reply{}, ErrModelUnavailable
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.newID()
	}
	maxHistory := s.defaultMaxHistory
	if req.MaxHistory != nil {
		maxHistory = *req.MaxHistory
	}

	if err := s.store.AppendMessage(ctx, sessionID, storage.SenderHuman, req.Prompt, s.now()); err != nil {
		return Reply{}, fmt.Errorf("save human message: %w", err)
	}

	buf, created := s.cache.Resolve(sessionID, maxHistory)
	if created {
		s.saveChatName(ctx, sessionID, req.Prompt)
	}

	history, err := buf.History(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("load session memory: %w", err)
	}
	prompt, err := RenderConversationPrompt(history, req.Prompt)
	if err != nil {
		return Reply{}, err
	}

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Reply{}, fmt.Errorf("call model: %w", err)
	}
	if err := buf.Save(ctx, req.Prompt, answer); err != nil {
		return Reply{}, fmt.Errorf("update session memory: %w", err)
	}

	explanation, code := SplitCode(answer)
	now := s.now()
	if err := s.store.AppendMessage(ctx, sessionID, storage.SenderAI, explanation, now); err != nil {
		return Reply{}, fmt.Errorf("save ai message: %w", err)
	}

	s.logger.Info("generated conversational response",
		slog.String("session_id", sessionID),
		slog.Bool("has_code", code != ""))

	return Reply{
		Response:    explanation,
		MessageType: MessageTypeConversation,
		SessionID:   sessionID,
		Timestamp:   now,
		Code:        code,
	}, nil
}

// saveChatName записывает имя чата и не прерывает запрос при ошибке.
func (s *ConversationService) saveChatName(ctx context.Context, sessionID, prompt string) {
	name := chatName(prompt)
	if err := s.store.UpsertSessionName(ctx, sessionID, name); err != nil {
		s.logger.Error("failed to save session name",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}

func chatName(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > chatNameLength {
		runes = runes[:chatNameLength]
	}
	return string(runes)
}

// History возвращает полную историю сессии из журнала.
func (s *ConversationService) History(ctx context.Context, sessionID string) ([]storage.ChatMessage, error) {
	return s.store.ListMessages(ctx, sessionID)
}

// ClearHistory удаляет журнал сообщений сессии. Буфер в кэше и имя чата остаются.
func (s *ConversationService) ClearHistory(ctx context.Context, sessionID string) error {
	return s.store.DeleteSessionMessages(ctx, sessionID)
}

// DeleteSession удаляет журнал и имя сессии. Буфер в кэше живёт до протухания.
func (s *ConversationService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

// ActiveSessions возвращает сессии, буферы которых сейчас лежат в кэше.
func (s *ConversationService) ActiveSessions() []string {
	return s.cache.IDs()
}

// SessionNames возвращает все известные сессии, новые первыми.
func (s *ConversationService) SessionNames(ctx context.Context) ([]storage.SessionName, error) {
	return s.store.ListSessionNames(ctx)
}
