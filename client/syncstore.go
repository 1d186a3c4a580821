// Package client holds the user-side session state: one HTTP channel for
// request/response calls, one push socket, one selected conversation.
package client

import (
	"chatwire/auth"
	"chatwire/domain"
	"chatwire/domain/event"
	"chatwire/errors"
	"chatwire/projection"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// subscription binds the selected conversation to the push listener.
// A cancelled handle never appends again, even if a dispatch is in flight.
type subscription struct {
	peer   string
	active bool
}

func (s *subscription) cancel() { s.active = false }

// SyncStore mirrors server state for one signed-in identity. All fields
// behind mu; network calls never hold the lock.
type SyncStore struct {
	baseURL string
	http    *resty.Client
	log     *slog.Logger
	updates chan struct{}

	mu       sync.Mutex
	token    string
	selfID   string
	sock     *websocket.Conn
	pumpDone chan struct{}
	online   []string
	peer     string
	sub      *subscription
	timeline *projection.Timeline
}

// NewSyncStore builds a store talking to one server. It stays inert until
// Login or Register, then Connect.
func NewSyncStore(baseURL string, log *slog.Logger) *SyncStore {
	return &SyncStore{
		baseURL: baseURL,
		http:    resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		log:     log,
		updates: make(chan struct{}, 1),
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

type apiError struct {
	Error string `json:"error"`
}

// Register creates an account and keeps the returned session token.
func (s *SyncStore) Register(ctx context.Context, displayName, email, password string) error {
	var out tokenResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"displayName": displayName, "email": email, "password": password}).
		SetResult(&out).
		Post("/api/auth/register")
	if err != nil {
		return fmt.Errorf("register call: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("register refused: %s", apiMessage(resp))
	}

	return s.adoptToken(out.Token)
}

// Login exchanges credentials for a session token and keeps it for every
// later call.
func (s *SyncStore) Login(ctx context.Context, email, password string) error {
	var out tokenResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err != nil {
		return fmt.Errorf("login call: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("login refused: %s", apiMessage(resp))
	}

	return s.adoptToken(out.Token)
}

// adoptToken stores the session token and the identity id carried in its
// claims. The signature is the server's business, only the subject is read.
func (s *SyncStore) adoptToken(token string) error {
	claims := &auth.CustomClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("unreadable session token: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.selfID = claims.UserID
	s.mu.Unlock()
	return nil
}

// Connect opens the push socket and starts the read pump. A live socket
// makes this a no-op. After a reconnect the store re-fetches history for
// the selected conversation, push delivery has no replay.
func (s *SyncStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.sock != nil {
		s.mu.Unlock()
		return nil
	}
	token := s.token
	s.mu.Unlock()

	if token == "" {
		return errors.ErrUnauthenticated
	}

	wsURL, err := s.pushURL(token)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing push socket: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s.mu.Lock()
	if s.sock != nil {
		// Lost the race to a concurrent Connect
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.sock = conn
	done := make(chan struct{})
	s.pumpDone = done
	peer := s.peer
	s.mu.Unlock()

	go s.readPump(conn, done)
	s.log.Debug("Push socket connected", "url", s.baseURL)

	if peer != "" {
		if _, err := s.refreshHistory(ctx, peer); err != nil {
			s.log.Warn("History refresh after reconnect failed", "peer", peer, "error", err)
		}
	}
	return nil
}

// Disconnect closes the push socket and waits for the pump to wind down.
// Safe to call repeatedly or when the store never connected.
func (s *SyncStore) Disconnect() {
	s.mu.Lock()
	conn := s.sock
	done := s.pumpDone
	s.sock = nil
	s.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = conn.Close()
	if done != nil {
		<-done
	}
}

// SelectConversation swaps the single push listener to the given peer and
// refreshes the visible transcript. The previous subscription is cancelled
// before the new one exists, two listeners can never be live at once.
func (s *SyncStore) SelectConversation(ctx context.Context, peerID string) ([]domain.Message, error) {
	s.mu.Lock()
	if s.sub != nil {
		s.sub.cancel()
	}
	s.peer = peerID
	s.sub = &subscription{peer: peerID, active: true}
	s.timeline = projection.NewTimeline(peerID)
	s.mu.Unlock()

	return s.refreshHistory(ctx, peerID)
}

// refreshHistory fetches the conversation and rebases the visible timeline
// onto it, unless the selection moved on while the fetch was in flight.
func (s *SyncStore) refreshHistory(ctx context.Context, peerID string) ([]domain.Message, error) {
	messages, err := s.History(ctx, peerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer != peerID {
		// A late response for a conversation no longer on screen
		return nil, nil
	}
	// Pushes that landed while the fetch was in flight survive the rebase.
	s.timeline.Rebase(messages)
	s.signal()
	return s.timeline.Messages(), nil
}

// Send posts one message over the request channel, never the socket, and
// returns the persisted record. Our own copy lands on the transcript
// directly, pushes only carry the peer's side.
func (s *SyncStore) Send(ctx context.Context, peerID, text, imageRef string) (domain.Message, error) {
	var out domain.Message
	resp, err := s.authorized().
		SetContext(ctx).
		SetBody(map[string]string{"text": text, "imageRef": imageRef}).
		SetResult(&out).
		Post("/api/messages/" + peerID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("send call: %w", err)
	}
	if resp.IsError() {
		return domain.Message{}, fmt.Errorf("send refused: %s", apiMessage(resp))
	}

	s.mu.Lock()
	if s.peer == peerID && s.timeline.Append(out) {
		s.signal()
	}
	s.mu.Unlock()
	return out, nil
}

// History fetches the full conversation with a peer, oldest first.
func (s *SyncStore) History(ctx context.Context, peerID string) ([]domain.Message, error) {
	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	resp, err := s.authorized().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/messages/" + peerID)
	if err != nil {
		return nil, fmt.Errorf("history call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("history refused: %s", apiMessage(resp))
	}
	return out.Messages, nil
}

// Contacts lists every known peer identity.
func (s *SyncStore) Contacts(ctx context.Context) ([]domain.Identity, error) {
	var out struct {
		Contacts []domain.Identity `json:"contacts"`
	}
	resp, err := s.authorized().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/contacts")
	if err != nil {
		return nil, fmt.Errorf("contacts call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("contacts refused: %s", apiMessage(resp))
	}
	return out.Contacts, nil
}

// UploadImage stores a local image on the server and returns the ref to
// embed in a message.
func (s *SyncStore) UploadImage(ctx context.Context, path string) (string, error) {
	var out struct {
		Ref string `json:"ref"`
	}
	resp, err := s.authorized().
		SetContext(ctx).
		SetFile("file", path).
		SetResult(&out).
		Post("/api/media")
	if err != nil {
		return "", fmt.Errorf("upload call: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("upload refused: %s", apiMessage(resp))
	}
	return out.Ref, nil
}

// SearchHit is one full-text match returned by the gateway.
type SearchHit struct {
	MessageID string  `json:"messageId"`
	SenderID  string  `json:"senderId"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// Search runs a full-text query over the caller's messages. An empty peerID
// searches every conversation at once.
func (s *SyncStore) Search(ctx context.Context, peerID, query string) ([]SearchHit, error) {
	var out struct {
		Hits []SearchHit `json:"hits"`
	}
	resp, err := s.authorized().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("peer", peerID).
		SetResult(&out).
		Get("/api/search")
	if err != nil {
		return nil, fmt.Errorf("search call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search refused: %s", apiMessage(resp))
	}
	return out.Hits, nil
}

// SetAvatar publishes a previously uploaded media ref as the caller's avatar.
func (s *SyncStore) SetAvatar(ctx context.Context, ref string) error {
	resp, err := s.authorized().
		SetContext(ctx).
		SetBody(map[string]string{"ref": ref}).
		Post("/api/profile/avatar")
	if err != nil {
		return fmt.Errorf("avatar call: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("avatar refused: %s", apiMessage(resp))
	}
	return nil
}

// Updates signals transcript or presence changes, coalesced. Terminal UIs
// redraw on it.
func (s *SyncStore) Updates() <-chan struct{} { return s.updates }

func (s *SyncStore) SelfID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfID
}

func (s *SyncStore) SelectedPeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *SyncStore) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sock != nil
}

// Online returns a copy of the latest presence snapshot.
func (s *SyncStore) Online() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.online...)
}

// Transcript returns a copy of the visible message list.
func (s *SyncStore) Transcript() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeline == nil {
		return nil
	}
	return s.timeline.Messages()
}

func (s *SyncStore) readPump(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		close(done)
		s.dropConn(conn)
	}()

	for {
		var e event.Event
		if err := conn.ReadJSON(&e); err != nil {
			s.log.Debug("Push socket closed", "error", err)
			return
		}
		s.dispatch(e)
	}
}

func (s *SyncStore) dispatch(e event.Event) {
	switch e.Kind {
	case event.KindPresence:
		online, err := e.PresenceSet()
		if err != nil {
			s.log.Warn("Bad presence frame", "error", err)
			return
		}
		s.mu.Lock()
		s.online = online
		s.signal()
		s.mu.Unlock()

	case event.KindMessage:
		msg, err := e.Message()
		if err != nil {
			s.log.Warn("Bad message frame", "error", err)
			return
		}
		s.mu.Lock()
		// Only the listener for the on-screen conversation appends,
		// everything else is discarded and recovered via history later.
		if s.sub != nil && s.sub.active && msg.SenderID == s.sub.peer && s.timeline.Append(msg) {
			s.signal()
		}
		s.mu.Unlock()

	default:
		s.log.Debug("Unknown push frame", "kind", string(e.Kind))
	}
}

// dropConn clears the handle if it still belongs to this pump's socket, so
// a newer connection is never torn down by an older pump.
func (s *SyncStore) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.sock == conn {
		s.sock = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *SyncStore) authorized() *resty.Request {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	return s.http.R().SetAuthToken(token)
}

func (s *SyncStore) pushURL(token string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("bad base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// signal must be called with mu held.
func (s *SyncStore) signal() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func apiMessage(resp *resty.Response) string {
	var out apiError
	if err := json.Unmarshal(resp.Body(), &out); err == nil && out.Error != "" {
		return out.Error
	}
	return resp.Status()
}
