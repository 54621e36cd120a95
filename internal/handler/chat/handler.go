package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	chatService "github.com/zhouzirui/mindharbor/backend/internal/service/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/service/session"
	"github.com/zhouzirui/mindharbor/backend/pkg/utils"
)

// Orchestrator 执行一轮对话。
type Orchestrator interface {
	Chat(ctx context.Context, conv *chat.Conversation, req chatService.Request) (chatService.Result, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	orchestrator Orchestrator
	sessions     session.Store
	log          *logger.Logger
}

// New 创建聊天处理器
func New(orchestrator Orchestrator, sessions session.Store, log *logger.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		sessions:     sessions,
		log:          logger.OrNop(log).With("component", "chat_handler"),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/chat", h.handleChat)
}

type turnPayload struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	ContentEN string `json:"content_en,omitempty"`
}

type chatPayload struct {
	Message             string        `json:"message"`
	ConversationHistory []turnPayload `json:"conversation_history"`
	SessionID           string        `json:"sessionId"`
	Region              string        `json:"region"`
}

type chatResponse struct {
	chatService.Result
	SessionID string `json:"sessionId"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleCreateSession 创建匿名会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	created, err := h.sessions.Create(r.Context())
	if err != nil {
		h.log.Error("create session failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, sessionResponse{ID: created.ID, CreatedAt: created.CreatedAt})
}

// handleChat 处理一条用户消息
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	history, err := toTurns(payload.ConversationHistory)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	current, err := h.loadOrCreate(ctx, strings.TrimSpace(payload.SessionID))
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	case err != nil:
		h.log.Error("load session failed", "session", payload.SessionID, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	conv := chat.NewConversation(current.ID, current.PreferredLanguage)
	result, err := h.orchestrator.Chat(ctx, conv, chatService.Request{
		Message: payload.Message,
		History: history,
		Region:  strings.TrimSpace(payload.Region),
	})
	if err != nil {
		if errors.Is(err, chatService.ErrEmptyMessage) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("chat turn failed", "session", current.ID, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate response")
		return
	}

	// 每轮成功的对话都续期会话，偏好变化时顺带写回
	if conv.Dirty() {
		if err := h.sessions.Save(ctx, conv.Snapshot(current)); err != nil {
			h.log.Warn("save session preference failed", "session", current.ID, "error", err)
		}
	} else if err := h.sessions.Touch(ctx, current.ID); err != nil {
		h.log.Warn("refresh session failed", "session", current.ID, "error", err)
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{Result: result, SessionID: current.ID})
}

func (h *Handler) loadOrCreate(ctx context.Context, id string) (chat.Session, error) {
	if id == "" {
		return h.sessions.Create(ctx)
	}
	return h.sessions.Load(ctx, id)
}

func toTurns(in []turnPayload) ([]chat.Turn, error) {
	if len(in) == 0 {
		return nil, nil
	}
	turns := make([]chat.Turn, 0, len(in))
	for _, t := range in {
		role := chat.Role(strings.ToLower(strings.TrimSpace(t.Role)))
		switch role {
		case "":
			role = chat.RoleUser
		case chat.RoleUser, chat.RoleAssistant:
		default:
			return nil, errors.New("conversation_history role must be user or assistant")
		}
		turns = append(turns, chat.Turn{Role: role, Content: t.Content, ContentNormalized: t.ContentEN})
	}
	return turns, nil
}
