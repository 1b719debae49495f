package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"agentchat/config"
	"agentchat/middleware"
	"agentchat/models"
	"agentchat/repository"
	"agentchat/services"
)

// fakeProvider satisfies services.ProviderService with canned replies so
// handler tests never reach a real backend.
type fakeProvider struct {
	reply string
}

func (f *fakeProvider) Resolve(model string) services.ProviderKind {
	return services.DetectProvider(model)
}

func (f *fakeProvider) Generate(_ context.Context, _ string, _ []openai.ChatCompletionMessage) (string, error) {
	return f.reply, nil
}

func (f *fakeProvider) Stream(_ context.Context, _ string, _ []openai.ChatCompletionMessage, onChunk func(chunk string) error) (string, error) {
	if onChunk != nil {
		if err := onChunk(f.reply); err != nil {
			return "", err
		}
	}
	return f.reply, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.AgentCategory{}, &models.Agent{},
		&models.UserAgent{}, &models.Chat{}, &models.Message{},
	))

	userRepo := repository.NewUserRepository(db, logger)
	categoryRepo := repository.NewCategoryRepository(db, logger)
	agentRepo := repository.NewAgentRepository(db, logger)
	userAgentRepo := repository.NewUserAgentRepository(db, logger)
	chatRepo := repository.NewChatRepository(db, logger)
	messageRepo := repository.NewMessageRepository(db, logger)

	chatCfg := config.ChatConfig{
		DefaultModel:        "llama3.2",
		DefaultSystemPrompt: "You are a helpful and friendly assistant. Respond clearly and concisely.",
		HistoryLimit:        50,
	}
	provider := &fakeProvider{reply: "Certainly, here is your answer."}
	entitlementService := services.NewEntitlementService(userAgentRepo, userRepo, agentRepo, logger)
	agentService := services.NewAgentService(chatRepo, agentRepo, chatCfg, logger)
	chatService := services.NewChatService(
		chatRepo, messageRepo, userRepo,
		agentService, entitlementService, provider,
		chatCfg, logger,
	)

	handler := NewAPIHandler(
		userRepo, categoryRepo, agentRepo, chatRepo, messageRepo,
		entitlementService, chatService, logger,
	)

	r := gin.New()
	apiGroup := r.Group("/api")
	apiGroup.POST("/users", handler.UpsertUserHandler)
	apiGroup.POST("/agent-categories", handler.CreateCategoryHandler)
	apiGroup.POST("/agents", handler.CreateAgentHandler)
	apiGroup.POST("/user-agents", handler.GrantEntitlementHandler)
	apiGroup.GET("/user-agents/:userId/:agentId/access", handler.CheckAccessHandler)

	authed := apiGroup.Group("", middleware.Identity())
	authed.POST("/chats", handler.CreateChatHandler)
	authed.GET("/chats/:id", handler.GetChatHandler)
	authed.POST("/messages", handler.SendMessageHandler)
	authed.GET("/messages", handler.ListMessagesHandler)
	authed.POST("/chats/:id/stream", handler.StreamMessageHandler)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("x-user-id", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var payload map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	}
	return w, payload
}

func TestPurchaseToReplyRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	// Sign in and build the directory.
	w, userResp := doJSON(t, r, http.MethodPost, "/api/users", "", gin.H{
		"id": "user-1", "email": "ada@example.com", "name": "Ada", "provider": "github",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, userResp["success"].(bool))

	w, catResp := doJSON(t, r, http.MethodPost, "/api/agent-categories", "", gin.H{"name": "General"})
	require.Equal(t, http.StatusCreated, w.Code)
	categoryID := catResp["data"].(map[string]interface{})["id"].(string)

	w, agentResp := doJSON(t, r, http.MethodPost, "/api/agents", "", gin.H{
		"name": "Tutor", "categoryId": categoryID, "model": "llama3.2",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	agentID := agentResp["data"].(map[string]interface{})["id"].(string)

	// Without a grant the chat gate holds.
	w, _ = doJSON(t, r, http.MethodPost, "/api/chats", "user-1", gin.H{"agentId": agentID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Purchase.
	w, _ = doJSON(t, r, http.MethodPost, "/api/user-agents", "", gin.H{
		"userId": "user-1", "agentId": agentID, "paymentId": "pay_42",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// A second purchase of the same agent conflicts.
	w, _ = doJSON(t, r, http.MethodPost, "/api/user-agents", "", gin.H{
		"userId": "user-1", "agentId": agentID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// The access check agrees.
	w, accessResp := doJSON(t, r, http.MethodGet, "/api/user-agents/user-1/"+agentID+"/access", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, accessResp["data"].(map[string]interface{})["hasAccess"].(bool))

	// Now the chat opens.
	w, chatResp := doJSON(t, r, http.MethodPost, "/api/chats", "user-1", gin.H{"agentId": agentID})
	require.Equal(t, http.StatusCreated, w.Code)
	chatID := chatResp["data"].(map[string]interface{})["id"].(string)

	// One exchange: user turn persisted, canned reply echoed back.
	w, msgResp := doJSON(t, r, http.MethodPost, "/api/messages", "user-1", gin.H{
		"chatId": chatID, "content": "What is a monad?",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, msgResp["success"].(bool))
	assert.Equal(t, "What is a monad?", msgResp["data"].(map[string]interface{})["content"])
	aiResponse := msgResp["aiResponse"].(map[string]interface{})
	assert.Equal(t, "Certainly, here is your answer.", aiResponse["content"])

	// The chat reflects both turns.
	w, getResp := doJSON(t, r, http.MethodGet, "/api/chats/"+chatID, "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	chatData := getResp["data"].(map[string]interface{})
	assert.Equal(t, float64(2), chatData["messageCount"])
	assert.Len(t, chatData["messages"], 2)

	// Another identity cannot read it.
	w, _ = doJSON(t, r, http.MethodGet, "/api/chats/"+chatID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// And no identity at all is rejected outright.
	w, _ = doJSON(t, r, http.MethodGet, "/api/chats/"+chatID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// openChat walks the sign-up, purchase and chat-creation steps and
// returns the new chat's id.
func openChat(t *testing.T, r *gin.Engine, userID string) string {
	t.Helper()

	w, _ := doJSON(t, r, http.MethodPost, "/api/users", "", gin.H{
		"id": userID, "email": userID + "@example.com", "name": "Ada", "provider": "github",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, catResp := doJSON(t, r, http.MethodPost, "/api/agent-categories", "", gin.H{"name": "General"})
	require.Equal(t, http.StatusCreated, w.Code)
	categoryID := catResp["data"].(map[string]interface{})["id"].(string)

	w, agentResp := doJSON(t, r, http.MethodPost, "/api/agents", "", gin.H{
		"name": "Tutor", "categoryId": categoryID, "model": "llama3.2",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	agentID := agentResp["data"].(map[string]interface{})["id"].(string)

	w, _ = doJSON(t, r, http.MethodPost, "/api/user-agents", "", gin.H{
		"userId": userID, "agentId": agentID,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, chatResp := doJSON(t, r, http.MethodPost, "/api/chats", userID, gin.H{"agentId": agentID})
	require.Equal(t, http.StatusCreated, w.Code)
	return chatResp["data"].(map[string]interface{})["id"].(string)
}

func TestSendMessageRoles(t *testing.T) {
	r := newTestRouter(t)
	chatID := openChat(t, r, "user-1")

	t.Run("assistant turns are stored without invoking a backend", func(t *testing.T) {
		w, msgResp := doJSON(t, r, http.MethodPost, "/api/messages", "user-1", gin.H{
			"chatId": chatID, "content": "Imported from elsewhere.", "role": "assistant",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "assistant", msgResp["data"].(map[string]interface{})["role"])
		assert.Nil(t, msgResp["aiResponse"])
	})

	t.Run("unknown roles are rejected", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPost, "/api/messages", "user-1", gin.H{
			"chatId": chatID, "content": "hello", "role": "narrator",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStreamMessagePlainText(t *testing.T) {
	r := newTestRouter(t)
	chatID := openChat(t, r, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/chats/"+chatID+"/stream",
		bytes.NewBufferString(`{"content": "What is a monad?"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-user-id", "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Certainly, here is your answer.", w.Body.String())

	// The buffered reply landed as the assistant turn.
	_, getResp := doJSON(t, r, http.MethodGet, "/api/chats/"+chatID, "user-1", nil)
	messages := getResp["data"].(map[string]interface{})["messages"].([]interface{})
	require.Len(t, messages, 2)
	last := messages[1].(map[string]interface{})
	assert.Equal(t, "assistant", last["role"])
	assert.Equal(t, "Certainly, here is your answer.", last["content"])
}
