package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// NoticeKind classifies transient user-facing conditions raised by the
// session. None of them are process-fatal; all are scoped to the view.
type NoticeKind int

const (
	// NoticeAuthError means the channel rejected our token. Fatal to
	// this session; the session does not retry on its own.
	NoticeAuthError NoticeKind = iota
	// NoticeDisconnected means the channel dropped. Reconnecting is the
	// caller's decision, not ours.
	NoticeDisconnected
)

type Notice struct {
	Kind    NoticeKind
	Message string
}

// Config carries everything a session needs explicitly. There is no
// ambient token storage: the credential lives here and dies with the
// session.
type Config struct {
	BaseURL    string // http(s)://host[:port], no trailing slash
	Token      string
	UserType   string // "worker" or "admin"
	TypingIdle time.Duration
	HTTP       *http.Client

	// OnMessage fires for every server-confirmed message folded into
	// the buffer, own echoes included. Optional.
	OnMessage func(Message)
	// OnNotice fires for auth errors and disconnects. Optional.
	OnNotice func(Notice)
}

// Session is one live view of the team conversation: snapshot first,
// then channel events. All state mutation happens on the session's own
// event loop; readers go through the accessor methods.
type Session struct {
	cfg      Config
	httpc    *http.Client
	uploader *Uploader

	mu        sync.Mutex
	transport *Transport
	buffer    *Buffer
	presence  *PresenceTracker
	typing    *TypingTracker
	chatID    int64
	chatName  string
	roster    []Participant
	self      Participant
	closed    bool
}

type wireParticipant struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	UserType string `json:"userType"`
}

type wireSnapshot struct {
	Chat struct {
		ID           int64             `json:"id"`
		Name         string            `json:"name"`
		Participants []wireParticipant `json:"participants"`
		Messages     []wireMessage     `json:"messages"`
	} `json:"chat"`
	CurrentUser wireParticipant `json:"currentUser"`
}

func NewSession(cfg Config) *Session {
	hc := cfg.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Session{
		cfg:   cfg,
		httpc: hc,
		uploader: &Uploader{
			BaseURL: cfg.BaseURL,
			Token:   cfg.Token,
			HTTP:    hc,
		},
	}
}

// Open fetches the conversation snapshot, dials the channel,
// authenticates, and starts the event loop. A snapshot failure surfaces
// here; there is no retry loop.
func (s *Session) Open(ctx context.Context) error {
	snap, err := s.fetchSnapshot(ctx)
	if err != nil {
		return err
	}

	t, err := Dial(ctx, wsURL(s.cfg.BaseURL))
	if err != nil {
		return err
	}
	if err := t.Authenticate(s.cfg.Token, s.cfg.UserType); err != nil {
		t.Close()
		return err
	}

	s.mu.Lock()
	s.transport = t
	s.self = Participant{ID: snap.CurrentUser.ID, Name: snap.CurrentUser.Name, Role: snap.CurrentUser.UserType}
	s.chatID = snap.Chat.ID
	s.chatName = snap.Chat.Name
	s.roster = s.roster[:0]
	for _, p := range snap.Chat.Participants {
		s.roster = append(s.roster, Participant{ID: p.ID, Name: p.Name, Role: p.UserType})
	}
	s.buffer = NewBuffer(s.self)
	msgs := make([]Message, 0, len(snap.Chat.Messages))
	for _, w := range snap.Chat.Messages {
		msgs = append(msgs, w.toMessage())
	}
	s.buffer.Seed(msgs)
	s.presence = NewPresenceTracker()
	s.typing = NewTypingTracker(s.cfg.TypingIdle,
		func() { t.Emit(evTyping, struct{}{}) },
		func() { t.Emit(evStopTyping, struct{}{}) },
	)
	s.mu.Unlock()

	go s.loop(t)
	return nil
}

func (s *Session) fetchSnapshot(ctx context.Context) (*wireSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/api/chat", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build snapshot request")
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch chat snapshot")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch chat snapshot: %s", resp.Status)
	}
	var snap wireSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, errors.Wrap(err, "decode chat snapshot")
	}
	return &snap, nil
}

// loop consumes the inbound event stream until the channel closes.
// All buffer/presence/typing mutation funnels through here plus the
// locked send path.
func (s *Session) loop(t *Transport) {
	for ev := range t.Events() {
		switch e := ev.(type) {
		case MessageReceived:
			s.mu.Lock()
			s.buffer.Reconcile(e.Message)
			s.mu.Unlock()
			if s.cfg.OnMessage != nil {
				s.cfg.OnMessage(e.Message)
			}
		case UserOnline:
			s.mu.Lock()
			s.presence.Join(e.User)
			s.mu.Unlock()
		case UserOffline:
			s.mu.Lock()
			s.presence.Leave(e.UserID)
			s.mu.Unlock()
		case UserTyping:
			s.typing.Start(e.UserName)
		case UserStopTyping:
			s.typing.Stop(e.UserName)
		case MessageRead:
			s.mu.Lock()
			s.buffer.MarkRead(e.MessageID, e.ReadBy, e.ReadAt)
			s.mu.Unlock()
		case AuthError:
			s.notify(Notice{Kind: NoticeAuthError, Message: e.Message})
			s.Close()
			return
		}
	}
	s.mu.Lock()
	wasClosed := s.closed
	s.mu.Unlock()
	if !wasClosed {
		s.notify(Notice{Kind: NoticeDisconnected, Message: "chat connection lost"})
	}
}

func (s *Session) notify(n Notice) {
	if s.cfg.OnNotice != nil {
		s.cfg.OnNotice(n)
	}
}

// SendText appends an optimistic bubble and emits the newMessage event.
// If the emit fails the bubble is rolled back before the error returns,
// so nothing stays stuck in pending.
func (s *Session) SendText(content string) error {
	s.mu.Lock()
	if s.closed || s.buffer == nil {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	id := s.buffer.AppendLocal(content, KindText, nil)
	t := s.transport
	s.mu.Unlock()

	if err := t.Emit(evNewMessage, newMessagePayload{Content: content, Type: string(KindText)}); err != nil {
		s.mu.Lock()
		s.buffer.FailLocal(id)
		s.mu.Unlock()
		return errors.Wrap(err, "send message")
	}
	return nil
}

// SendAttachment uploads the file, then announces it on the channel.
// Unlike text there is no optimistic bubble: the attachment has no URL
// until the upload finishes. A result arriving after Close is dropped.
func (s *Session) SendAttachment(ctx context.Context, name string, size int64, r io.Reader) error {
	s.mu.Lock()
	if s.transport == nil {
		s.mu.Unlock()
		return errors.New("session not open")
	}
	s.mu.Unlock()

	fileURL, err := s.uploader.Upload(ctx, name, r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	t := s.transport
	s.mu.Unlock()

	mimeType := GuessMime(name)
	return t.Emit(evNewMessage, newMessagePayload{
		Content:  name,
		Type:     string(KindForMime(mimeType)),
		FileURL:  fileURL,
		FileName: name,
		FileSize: size,
		MimeType: mimeType,
	})
}

// TypingSignal reports one local keystroke; the tracker handles the
// typing emit and the debounced stopTyping.
func (s *Session) TypingSignal() {
	s.mu.Lock()
	typ := s.typing
	s.mu.Unlock()
	if typ != nil {
		typ.Signal()
	}
}

// MarkRead tells the server this user has read the given message. The
// local receipt lands when the messageRead broadcast comes back.
func (s *Session) MarkRead(messageID int64) error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return errors.New("session not open")
	}
	return t.Emit(evMarkRead, markReadPayload{MessageID: messageID})
}

// Messages returns the conversation in display order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer == nil {
		return nil
	}
	return s.buffer.Messages()
}

// Online returns who is connected right now.
func (s *Session) Online() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presence == nil {
		return nil
	}
	return s.presence.Online()
}

func (s *Session) OnlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presence == nil {
		return 0
	}
	return s.presence.Count()
}

// TypingNames returns remote participants currently composing.
func (s *Session) TypingNames() []string {
	s.mu.Lock()
	typ := s.typing
	s.mu.Unlock()
	if typ == nil {
		return nil
	}
	return typ.Names()
}

func (s *Session) Self() Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

func (s *Session) ChatName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatName
}

func (s *Session) Roster() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Participant, len(s.roster))
	copy(out, s.roster)
	return out
}

// Close releases the channel and cancels the typing timer. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	t := s.transport
	typ := s.typing
	s.mu.Unlock()

	if typ != nil {
		typ.Close()
	}
	if t != nil {
		t.Close()
	}
}

// Login exchanges credentials for a bearer token and the user identity.
func Login(ctx context.Context, hc *http.Client, baseURL, email, password string) (string, Participant, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/login", strings.NewReader(string(body)))
	if err != nil {
		return "", Participant{}, errors.Wrap(err, "build login request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return "", Participant{}, errors.Wrap(err, "login")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", Participant{}, errors.Errorf("login: %s", resp.Status)
	}
	var out struct {
		Token string          `json:"token"`
		User  wireParticipant `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", Participant{}, errors.Wrap(err, "decode login response")
	}
	return out.Token, Participant{ID: out.User.ID, Name: out.User.Name, Role: out.User.UserType}, nil
}

// wsURL maps the HTTP base to the channel endpoint.
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	}
	return base + "/ws"
}
