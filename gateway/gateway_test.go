package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatwire/auth"
	"chatwire/domain"
	"chatwire/domain/event"
	"chatwire/media"
	"chatwire/moderation"
	"chatwire/observability"
	"chatwire/realtime"
	"chatwire/repositories"
	"chatwire/search"
	"chatwire/services"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type gatewayFixture struct {
	server *httptest.Server
}

// newGatewayFixture boots the full edge on ephemeral storage: router,
// registry, relay, broadcaster, search and media, exactly as main wires them.
func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)

	moderator, err := moderation.NewModerator([]string{"mushroom"}, '*', log)
	req.NoError(err)

	registry := realtime.NewRegistry()
	stats := observability.NewStats(log)
	index := search.NewIndex(writer, log)
	relay := realtime.NewRelay(log, registry, messages, users, &moderator, index, stats)

	store, err := media.NewStore(t.TempDir(), 1<<20, log)
	req.NoError(err)

	handler := NewHandler(Deps{
		Log:           log,
		Auth:          services.NewAuthService(users, time.Hour),
		Authenticator: auth.NewAuthenticator(users),
		Users:         users,
		Relay:         relay,
		Registry:      registry,
		Search:        index,
		Media:         store,
		Stats:         stats,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	broadcaster := realtime.NewBroadcaster(log, registry, stats)
	go func() { _ = broadcaster.Run(ctx) }()

	gin.SetMode(gin.TestMode)
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)

	return &gatewayFixture{server: server}
}

func (f *gatewayFixture) register(t *testing.T, displayName, email string) string {
	t.Helper()
	req := require.New(t)

	body := fmt.Sprintf(`{"displayName":%q,"email":%q,"password":"ComplexPass123!"}`, displayName, email)
	resp, err := http.Post(f.server.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusCreated, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&out))
	req.NotEmpty(out.Token)
	return out.Token
}

func (f *gatewayFixture) do(t *testing.T, method, token, path, body string) *http.Response {
	t.Helper()
	req := require.New(t)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request, err := http.NewRequest(method, f.server.URL+path, reader)
	req.NoError(err)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(request)
	req.NoError(err)
	return resp
}

func (f *gatewayFixture) upload(t *testing.T, token string, content []byte) *http.Response {
	t.Helper()
	req := require.New(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "upload.bin")
	req.NoError(err)
	_, err = part.Write(content)
	req.NoError(err)
	req.NoError(form.Close())

	request, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/media", &buf)
	req.NoError(err)
	request.Header.Set("Content-Type", form.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.server.Client().Do(request)
	req.NoError(err)
	return resp
}

func (f *gatewayFixture) dialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	req := require.New(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.NoError(err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// awaitKind reads frames until one of the wanted kind shows up. Registration
// happens server-side after the handshake returns, so tests wait for the
// first presence frame before acting on a fresh socket.
func awaitKind(t *testing.T, conn *websocket.Conn, kind event.Kind) event.Event {
	t.Helper()
	req := require.New(t)

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		var e event.Event
		req.NoError(conn.ReadJSON(&e))
		if e.Kind == kind {
			return e
		}
	}
}

func userID(t *testing.T, token string) string {
	t.Helper()
	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	return claims.UserID
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func Test_Register_Login_And_Auth_Gate(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)

	// Given a registered user
	token := f.register(t, "Alice", "alice@example.com")

	// Then protected routes reject missing and garbage tokens
	resp := f.do(t, http.MethodGet, "", "/api/contacts", "")
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "not-a-token", "/api/contacts", "")
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// And accept the issued one
	resp = f.do(t, http.MethodGet, token, "/api/contacts", "")
	req.Equal(http.StatusOK, resp.StatusCode)
	contacts := decodeBody[struct {
		Contacts []domain.Identity `json:"contacts"`
	}](t, resp)
	req.Empty(contacts.Contacts) // The caller is not their own contact

	// And login works only with the right password
	resp = f.do(t, http.MethodPost, "", "/api/auth/login",
		`{"email":"alice@example.com","password":"ComplexPass123!"}`)
	req.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "", "/api/auth/login",
		`{"email":"alice@example.com","password":"WrongPass123!"}`)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func Test_Send_And_History_Over_HTTP(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)

	aliceToken := f.register(t, "Alice", "alice@example.com")
	bobToken := f.register(t, "Bob", "bob@example.com")
	aliceID, bobID := userID(t, aliceToken), userID(t, bobToken)

	// When alice messages bob
	resp := f.do(t, http.MethodPost, aliceToken, "/api/messages/"+bobID, `{"text":"hello bob"}`)
	req.Equal(http.StatusCreated, resp.StatusCode)
	sent := decodeBody[domain.Message](t, resp)
	req.Equal(aliceID, sent.SenderID)
	req.Equal("hello bob", sent.Text)

	// Then bob sees it in the shared history
	resp = f.do(t, http.MethodGet, bobToken, "/api/messages/"+aliceID, "")
	req.Equal(http.StatusOK, resp.StatusCode)
	history := decodeBody[struct {
		Messages []domain.Message `json:"messages"`
	}](t, resp)
	req.Len(history.Messages, 1)
	req.Equal(sent.ID, history.Messages[0].ID)

	// And malformed or misaddressed sends are rejected
	resp = f.do(t, http.MethodPost, aliceToken, "/api/messages/"+bobID, `{}`)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, aliceToken, "/api/messages/nobody", `{"text":"hi"}`)
	req.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func Test_Websocket_Delivers_Presence_And_Messages(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)

	aliceToken := f.register(t, "Alice", "alice@example.com")
	bobToken := f.register(t, "Bob", "bob@example.com")
	aliceID, bobID := userID(t, aliceToken), userID(t, bobToken)

	// Given bob is connected and announced
	bobConn := f.dialWS(t, bobToken)
	presence := awaitKind(t, bobConn, event.KindPresence)
	online, err := presence.PresenceSet()
	req.NoError(err)
	req.Contains(online, bobID)

	// When alice sends over HTTP
	resp := f.do(t, http.MethodPost, aliceToken, "/api/messages/"+bobID, `{"text":"hello over the wire"}`)
	req.Equal(http.StatusCreated, resp.StatusCode)
	sent := decodeBody[domain.Message](t, resp)

	// Then the full record is pushed to bob's socket
	frame := awaitKind(t, bobConn, event.KindMessage)
	pushed, err := frame.Message()
	req.NoError(err)
	req.Equal(sent.ID, pushed.ID)
	req.Equal(aliceID, pushed.SenderID)
	req.Equal("hello over the wire", pushed.Text)
}

func Test_Websocket_Rejects_Bad_Token(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=garbage"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Nil(conn)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func Test_Media_Upload_Roundtrip(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)

	token := f.register(t, "Alice", "alice@example.com")

	// An authenticated image upload is stored and served back
	resp := f.upload(t, token, pngHeader)
	req.Equal(http.StatusCreated, resp.StatusCode)
	uploaded := decodeBody[struct {
		Ref string `json:"ref"`
	}](t, resp)
	req.True(strings.HasPrefix(uploaded.Ref, "/media/"))

	resp = f.do(t, http.MethodGet, "", uploaded.Ref, "")
	req.Equal(http.StatusOK, resp.StatusCode)
	served, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	req.NoError(err)
	req.Equal(pngHeader, served)

	// Non-image content is refused
	resp = f.upload(t, token, []byte("just some text"))
	req.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
	resp.Body.Close()

	// Anonymous uploads are refused
	resp = f.upload(t, "", pngHeader)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func Test_Search_Finds_Sent_Text(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)

	aliceToken := f.register(t, "Alice", "alice@example.com")
	bobToken := f.register(t, "Bob", "bob@example.com")
	bobID := userID(t, bobToken)

	resp := f.do(t, http.MethodPost, aliceToken, "/api/messages/"+bobID,
		`{"text":"the quarterly report is ready"}`)
	req.Equal(http.StatusCreated, resp.StatusCode)
	sent := decodeBody[domain.Message](t, resp)

	resp = f.do(t, http.MethodGet, aliceToken, "/api/search?q=quarterly", "")
	req.Equal(http.StatusOK, resp.StatusCode)
	found := decodeBody[struct {
		Hits []search.Hit `json:"hits"`
	}](t, resp)
	req.Len(found.Hits, 1)
	req.Equal(sent.ID.String(), found.Hits[0].MessageID)

	// A missing query is a client error
	resp = f.do(t, http.MethodGet, aliceToken, "/api/search", "")
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func Test_Avatar_Update_Requires_Known_Ref(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)

	aliceToken := f.register(t, "Alice", "alice@example.com")
	bobToken := f.register(t, "Bob", "bob@example.com")

	// A ref that was never uploaded is refused
	resp := f.do(t, http.MethodPost, aliceToken, "/api/profile/avatar", `{"ref":"/media/ghost.png"}`)
	req.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// An uploaded ref sticks and shows up in the contact list
	resp = f.upload(t, aliceToken, pngHeader)
	req.Equal(http.StatusCreated, resp.StatusCode)
	uploaded := decodeBody[struct {
		Ref string `json:"ref"`
	}](t, resp)

	resp = f.do(t, http.MethodPost, aliceToken, "/api/profile/avatar",
		fmt.Sprintf(`{"ref":%q}`, uploaded.Ref))
	req.Equal(http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, bobToken, "/api/contacts", "")
	req.Equal(http.StatusOK, resp.StatusCode)
	contacts := decodeBody[struct {
		Contacts []domain.Identity `json:"contacts"`
	}](t, resp)
	req.Len(contacts.Contacts, 1)
	req.Equal("Alice", contacts.Contacts[0].DisplayName)
	req.Equal(uploaded.Ref, contacts.Contacts[0].AvatarRef)
}
