package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoventa/dealerbot/internal/agent"
	"github.com/autoventa/dealerbot/internal/auth"
	"github.com/autoventa/dealerbot/internal/catalog"
	"github.com/autoventa/dealerbot/internal/financing"
	"github.com/autoventa/dealerbot/internal/knowledge"
	"github.com/autoventa/dealerbot/internal/ledger"
	"github.com/autoventa/dealerbot/internal/queue"
	"github.com/autoventa/dealerbot/internal/session"
)

// fakeAgent counts invocations and echoes.
type fakeAgent struct {
	invocations atomic.Int32
	err         error
	onInvoke    func(senderID string)
}

func (f *fakeAgent) Invoke(_ context.Context, senderID string, _ []session.Turn, message string) (agent.Reply, error) {
	f.invocations.Add(1)
	if f.onInvoke != nil {
		f.onInvoke(senderID)
	}
	if f.err != nil {
		return agent.Reply{}, f.err
	}
	return agent.Reply{Text: "re:" + message}, nil
}

// memCatalog is an in-memory Catalog + Repository.
type memCatalog struct {
	cars []catalog.Car
}

func (m *memCatalog) Search(_ context.Context, f catalog.Filter) ([]catalog.Car, error) {
	var out []catalog.Car
	for _, c := range m.cars {
		if c.DeletedAt != nil {
			continue
		}
		if f.Make != "" && c.Make != f.Make {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memCatalog) Repo() catalog.Repository { return m }

func (m *memCatalog) Create(_ context.Context, car *catalog.Car) error {
	if car.ID == uuid.Nil {
		car.ID = uuid.New()
	}
	m.cars = append(m.cars, *car)
	return nil
}

func (m *memCatalog) CreateBulk(_ context.Context, cars []catalog.Car) (int, error) {
	m.cars = append(m.cars, cars...)
	return len(cars), nil
}

func (m *memCatalog) GetByID(_ context.Context, id uuid.UUID) (*catalog.Car, error) {
	for i := range m.cars {
		if m.cars[i].ID == id && m.cars[i].DeletedAt == nil {
			return &m.cars[i], nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memCatalog) GetByStockID(_ context.Context, stockID string) (*catalog.Car, error) {
	for i := range m.cars {
		if m.cars[i].StockID == stockID && m.cars[i].DeletedAt == nil {
			return &m.cars[i], nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memCatalog) Update(_ context.Context, car *catalog.Car) error {
	for i := range m.cars {
		if m.cars[i].ID == car.ID {
			m.cars[i] = *car
			return nil
		}
	}
	return catalog.ErrNotFound
}

func (m *memCatalog) Delete(_ context.Context, id uuid.UUID) error {
	now := time.Now()
	for i := range m.cars {
		if m.cars[i].ID == id && m.cars[i].DeletedAt == nil {
			m.cars[i].DeletedAt = &now
			return nil
		}
	}
	return catalog.ErrNotFound
}

func (m *memCatalog) Makes(context.Context) ([]string, error)                { return nil, nil }
func (m *memCatalog) ModelsByMake(context.Context, string) ([]string, error) { return nil, nil }

// memKnowledge is an in-memory KnowledgeStore.
type memKnowledge struct {
	docs []knowledge.Document
}

func (m *memKnowledge) IngestText(_ context.Context, text, sourceURL string) (int, error) {
	m.docs = append(m.docs, knowledge.Document{ID: uuid.New(), Content: text, SourceURL: sourceURL})
	return 1, nil
}

func (m *memKnowledge) IngestURL(_ context.Context, pageURL string) (int, error) {
	m.docs = append(m.docs, knowledge.Document{ID: uuid.New(), Content: "scraped", SourceURL: pageURL})
	return 1, nil
}

func (m *memKnowledge) Search(_ context.Context, _ string, _ int) ([]knowledge.SearchResult, error) {
	var out []knowledge.SearchResult
	for _, d := range m.docs {
		out = append(out, knowledge.SearchResult{Document: d})
	}
	return out, nil
}

func (m *memKnowledge) List(_ context.Context, _ string, _ int) ([]knowledge.Document, error) {
	return m.docs, nil
}

func (m *memKnowledge) Delete(_ context.Context, id uuid.UUID) error {
	for i := range m.docs {
		if m.docs[i].ID == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return knowledge.ErrNotFound
}

type testEnv struct {
	server    *Server
	router    *gin.Engine
	queue     *queue.Queue
	sessions  *session.Store
	agent     *fakeAgent
	records   *ledger.Memory
	catalog   *memCatalog
	knowledge *memKnowledge
	tokens    *auth.JWTManager
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		queue:     queue.New(4),
		sessions:  session.NewStore(0, 0),
		agent:     &fakeAgent{},
		records:   ledger.NewMemory(time.Hour),
		catalog:   &memCatalog{},
		knowledge: &memKnowledge{},
		tokens:    auth.NewJWTManager([]byte("test-secret"), time.Hour),
	}
	creds := auth.Credentials{Username: "admin", PasswordHash: "secret123"}
	env.server = NewServer(cfg, env.queue, env.sessions, env.agent, env.records,
		env.catalog, financing.NewCalculator(0.10, 0.10), env.knowledge, env.tokens, creds)
	env.router = env.server.Router()
	return env
}

func (env *testEnv) bearer(t *testing.T) string {
	t.Helper()
	token, err := env.tokens.Generate("admin")
	require.NoError(t, err)
	return "Bearer " + token
}

func (env *testEnv) doJSON(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", env.bearer(t))
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func postWebhook(env *testEnv, form url.Values, sign string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/webhooks/twilio",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sign != "" {
		req.Header.Set("X-Twilio-Signature", sign)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func twilioForm(sid, from, body string) url.Values {
	return url.Values{
		"MessageSid": {sid},
		"From":       {"whatsapp:" + from},
		"Body":       {body},
	}
}

func signForm(authToken, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := requestURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhook_EnqueuesAndAnswersImmediately(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := postWebhook(env, twilioForm("SM1", "+52155", "hola"), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<Response>")

	// The webhook never runs the agent; that happens on the worker.
	assert.Equal(t, int32(0), env.agent.invocations.Load())

	entry, ok := env.queue.Poll()
	require.True(t, ok)
	assert.Equal(t, "SM1", entry.Message.MessageID)
	assert.Equal(t, "+52155", entry.Message.SenderID)
	assert.Equal(t, "hola", entry.Message.Body)
}

func TestWebhook_SignatureEnforced(t *testing.T) {
	env := newTestEnv(t, Config{
		TwilioAuthToken: "token123",
		PublicURL:       "https://bot.example.com",
	})
	form := twilioForm("SM1", "+52155", "hola")

	// Missing and bad signatures are rejected.
	assert.Equal(t, http.StatusForbidden, postWebhook(env, form, "").Code)
	assert.Equal(t, http.StatusForbidden, postWebhook(env, form, "bogus").Code)
	assert.Equal(t, 0, env.queue.Len())

	good := signForm("token123", "https://bot.example.com/api/v1/chat/webhooks/twilio", form)
	assert.Equal(t, http.StatusOK, postWebhook(env, form, good).Code)
	assert.Equal(t, 1, env.queue.Len())
}

func TestWebhook_DeduplicatesRedelivery(t *testing.T) {
	env := newTestEnv(t, Config{})
	form := twilioForm("SM1", "+52155", "hola")

	assert.Equal(t, http.StatusOK, postWebhook(env, form, "").Code)
	assert.Equal(t, http.StatusOK, postWebhook(env, form, "").Code)
	assert.Equal(t, 1, env.queue.Len(), "redelivery must not enqueue twice")
}

func TestWebhook_QueueFull(t *testing.T) {
	env := newTestEnv(t, Config{})

	for i := 0; i < env.queue.Cap(); i++ {
		w := postWebhook(env, twilioForm("SM"+string(rune('a'+i)), "+52155", "hola"), "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postWebhook(env, twilioForm("SMoverflow", "+52155", "hola"), "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestWebhook_MissingFields(t *testing.T) {
	env := newTestEnv(t, Config{})
	w := postWebhook(env, url.Values{"From": {"whatsapp:+52155"}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.doJSON(t, http.MethodPost, "/api/v1/auth/login",
		gin.H{"username": "admin", "password": "secret123"}, false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	subject, err := env.tokens.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)

	w = env.doJSON(t, http.MethodPost, "/api/v1/auth/login",
		gin.H{"username": "admin", "password": "wrong"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, Config{})
	w := env.doJSON(t, http.MethodGet, "/api/v1/cars", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatMessage(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.doJSON(t, http.MethodPost, "/api/v1/chat/message",
		gin.H{"phone": "+52155", "message": "hola"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "re:hola")

	snap, ok := env.sessions.Snapshot("+52155")
	require.True(t, ok)
	assert.Len(t, snap.Turns, 2)
}

func TestChatMessage_FirstContactKeepsToolMetadata(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.agent.onInvoke = func(senderID string) {
		// What the car-search tool does mid-exchange: remember what it showed.
		env.sessions.SetMetadata(senderID, "last_stock_ids", []string{"K-100"})
	}

	w := env.doJSON(t, http.MethodPost, "/api/v1/chat/message",
		gin.H{"phone": "+52155", "message": "busco un toyota"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	// The session exists from the very first message, so the metadata written
	// during the exchange survives for the follow-up ("el primero").
	snap, ok := env.sessions.Snapshot("+52155")
	require.True(t, ok)
	assert.Equal(t, []string{"K-100"}, snap.Metadata["last_stock_ids"])
	require.Len(t, snap.Turns, 2)
	assert.Equal(t, session.RoleUser, snap.Turns[0].Role)
}

func TestChatMessage_AgentUnavailable(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.agent.err = agent.ErrUnavailable

	w := env.doJSON(t, http.MethodPost, "/api/v1/chat/message",
		gin.H{"phone": "+52155", "message": "hola"}, true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessionAdmin(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.sessions.AppendTurn("+52155", session.Turn{Role: session.RoleUser, Content: "hola"})

	w := env.doJSON(t, http.MethodGet, "/api/v1/chat/sessions/+52155", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hola")

	w = env.doJSON(t, http.MethodDelete, "/api/v1/chat/sessions/+52155", nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.doJSON(t, http.MethodGet, "/api/v1/chat/sessions/+52155", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCarCRUD(t *testing.T) {
	env := newTestEnv(t, Config{})

	// Create normalizes the make.
	w := env.doJSON(t, http.MethodPost, "/api/v1/cars", gin.H{
		"stock_id": "K-100", "make": "VW", "model": "Jetta",
		"year": 2022, "price": 320000, "km": 25000,
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var created catalog.Car
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "volkswagen", created.Make)
	assert.Equal(t, "jetta", created.Model)

	// Lookup by stock ID.
	w = env.doJSON(t, http.MethodGet, "/api/v1/cars/K-100", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	// Lookup by UUID.
	w = env.doJSON(t, http.MethodGet, "/api/v1/cars/"+created.ID.String(), nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	// Update.
	created.Price = 310000
	w = env.doJSON(t, http.MethodPut, "/api/v1/cars/"+created.ID.String(), created, true)
	assert.Equal(t, http.StatusOK, w.Code)

	// Soft delete hides the car.
	w = env.doJSON(t, http.MethodDelete, "/api/v1/cars/"+created.ID.String(), nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.doJSON(t, http.MethodGet, "/api/v1/cars/K-100", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCarValidation(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.doJSON(t, http.MethodPost, "/api/v1/cars", gin.H{
		"stock_id": "K-1", "make": "toyota", "model": "corolla",
		"year": 2021, "price": -5,
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "price")
}

func TestCarBulkCreate(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.doJSON(t, http.MethodPost, "/api/v1/cars/bulk", []gin.H{
		{"stock_id": "K-1", "make": "toyota", "model": "corolla", "year": 2021, "price": 298000},
		{"stock_id": "K-2", "make": "nissan", "model": "versa", "year": 2020, "price": 215000},
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"inserted":2`)
}

func TestFinancingEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.doJSON(t, http.MethodPost, "/api/v1/financing/calculate",
		gin.H{"car_price": 200000, "down_payment": 20000}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"plans"`)

	// Down payment >= price is unprocessable.
	w = env.doJSON(t, http.MethodPost, "/api/v1/financing/calculate",
		gin.H{"car_price": 100, "down_payment": 100}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestKnowledgeEndpoints(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.doJSON(t, http.MethodPost, "/api/v1/knowledge",
		gin.H{"content": "Garantía de 3 meses.", "source_url": "faq"}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.doJSON(t, http.MethodGet, "/api/v1/knowledge", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Garantía")

	w = env.doJSON(t, http.MethodPost, "/api/v1/knowledge/search",
		gin.H{"query": "garantía"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	id := env.knowledge.docs[0].ID
	w = env.doJSON(t, http.MethodDelete, "/api/v1/knowledge/"+id.String(), nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.doJSON(t, http.MethodDelete, "/api/v1/knowledge/"+uuid.NewString(), nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKnowledgeScrape(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.doJSON(t, http.MethodPost, "/api/v1/knowledge/scrape",
		gin.H{"url": "https://dealer.example.com/faq"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, env.knowledge.docs, 1)
	assert.Equal(t, "https://dealer.example.com/faq", env.knowledge.docs[0].SourceURL)

	// Non-HTTP URLs are rejected before any fetch happens.
	w = env.doJSON(t, http.MethodPost, "/api/v1/knowledge/scrape",
		gin.H{"url": "ftp://dealer.example.com"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{})
	w := env.doJSON(t, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"queue_capacity":4`)
}
