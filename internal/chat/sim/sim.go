// Package sim is an in-process chat driver for local development and
// end-to-end exercising. It replays a deterministic pairing flow and serves
// generated fixture history, so the full server can run without the real
// network. Everything is derived from the user id, so restarts see the same
// codes, numbers and chats.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/chatvault/server-go/internal/chat"
)

type Factory struct {
	PairDelay       time.Duration
	AuthDelay       time.Duration
	ReadyDelay      time.Duration
	ChatCount       int
	MessagesPerChat int
	// LiveInterval > 0 makes connected clients emit a synthetic inbound
	// message on that period.
	LiveInterval time.Duration
}

func NewFactory() *Factory {
	return &Factory{
		PairDelay:       500 * time.Millisecond,
		AuthDelay:       2 * time.Second,
		ReadyDelay:      300 * time.Millisecond,
		ChatCount:       8,
		MessagesPerChat: 40,
	}
}

type credentialBlob struct {
	UserID      string `json:"userId"`
	PhoneNumber string `json:"phoneNumber"`
}

func (f *Factory) NewClient(userID string, sessionBlob []byte) (chat.Client, error) {
	if userID == "" {
		return nil, fmt.Errorf("sim: empty user id")
	}
	c := &client{
		f:      f,
		userID: userID,
		events: make(chan chat.Event, 16),
		stop:   make(chan struct{}),
	}
	if len(sessionBlob) > 0 {
		var b credentialBlob
		if err := json.Unmarshal(sessionBlob, &b); err == nil && b.UserID == userID {
			c.resumed = true
		}
	}
	return c, nil
}

type client struct {
	f       *Factory
	userID  string
	resumed bool

	events    chan chat.Event
	stop      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	identity *chat.Identity
}

func (c *client) Connect(ctx context.Context) error {
	go c.run()
	return nil
}

func (c *client) Disconnect() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *client) Events() <-chan chat.Event {
	return c.events
}

// run owns the event channel: it is the only writer and closes it on exit.
func (c *client) run() {
	defer close(c.events)

	if !c.resumed {
		if !c.sleep(c.f.PairDelay) {
			return
		}
		c.emit(chat.Event{Kind: chat.EventPairingCode, Code: c.pairingCode()})
		if !c.sleep(c.f.AuthDelay) {
			return
		}
	}

	c.setIdentity()
	c.emit(chat.Event{Kind: chat.EventAuthenticated})
	if !c.sleep(c.f.ReadyDelay) {
		return
	}
	c.emit(chat.Event{Kind: chat.EventReady})

	if c.f.LiveInterval > 0 {
		ticker := time.NewTicker(c.f.LiveInterval)
		defer ticker.Stop()
		n := 0
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				n++
				c.emit(chat.Event{Kind: chat.EventMessage, Message: c.liveMessage(n)})
			}
		}
	}

	<-c.stop
}

func (c *client) emit(ev chat.Event) {
	select {
	case c.events <- ev:
	case <-c.stop:
	}
}

func (c *client) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-c.stop:
		return false
	}
}

func (c *client) setIdentity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = &chat.Identity{
		ID:          c.userID + "@sim",
		PhoneNumber: c.phoneNumber(),
		DisplayName: fmt.Sprintf("Sim User %04d", c.seed()%10000),
	}
}

func (c *client) Identity() *chat.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *client) SessionBlob() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	data, _ := json.Marshal(credentialBlob{UserID: c.userID, PhoneNumber: c.identity.PhoneNumber})
	return data
}

func (c *client) Chats(ctx context.Context) ([]chat.Chat, error) {
	if c.Identity() == nil {
		return nil, fmt.Errorf("sim: not connected")
	}
	chats := make([]chat.Chat, 0, c.f.ChatCount)
	for i := 0; i < c.f.ChatCount; i++ {
		ch := chat.Chat{
			ID:   fmt.Sprintf("sim-chat-%03d", i+1),
			Name: fmt.Sprintf("Sim Chat %d", i+1),
		}
		if i%3 == 0 {
			ch.IsGroup = true
			ch.Name = fmt.Sprintf("Sim Group %d", i+1)
			ch.Participants = []string{"sim-contact-a", "sim-contact-b", c.userID + "@sim"}
		}
		chats = append(chats, ch)
	}
	return chats, nil
}

func (c *client) History(ctx context.Context, chatID string, limit int) ([]chat.Message, error) {
	if c.Identity() == nil {
		return nil, fmt.Errorf("sim: not connected")
	}
	n := c.f.MessagesPerChat
	if limit > 0 && limit < n {
		n = limit
	}
	base := time.Now().Add(-24 * time.Hour)
	msgs := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		m := chat.Message{
			ID:     fmt.Sprintf("%s-msg-%04d", chatID, i+1),
			ChatID: chatID,
			Body:   fmt.Sprintf("fixture message %d", i+1),
			Type:   "text",
			FromMe: i%4 == 0,
		}
		if m.FromMe {
			m.SenderID = c.userID + "@sim"
		} else {
			m.SenderID = "sim-contact-a"
			m.NotifyName = "Contact A"
		}
		// Half the records carry second precision the way older server
		// paths do, so both timestamp shapes show up on every run.
		if i%2 == 0 {
			m.Timestamp = at.Unix()
		} else {
			m.Timestamp = at.UnixMilli()
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (c *client) AvatarURL(ctx context.Context, contactID string) (string, error) {
	return fmt.Sprintf("https://sim.chatvault.local/avatars/%s.png", contactID), nil
}

func (c *client) liveMessage(n int) *chat.Message {
	return &chat.Message{
		ID:         fmt.Sprintf("sim-live-%d-%d", c.seed(), n),
		ChatID:     "sim-chat-001",
		SenderID:   "sim-contact-a",
		NotifyName: "Contact A",
		Body:       fmt.Sprintf("live message %d", n),
		Type:       "text",
		Timestamp:  time.Now().UnixMilli(),
	}
}

func (c *client) seed() uint32 {
	h := fnv.New32a()
	h.Write([]byte(c.userID))
	return h.Sum32()
}

func (c *client) pairingCode() string {
	s := c.seed()
	return fmt.Sprintf("%04d-%04d", s%10000, (s/10000)%10000)
}

func (c *client) phoneNumber() string {
	return fmt.Sprintf("+1555%07d", c.seed()%10000000)
}
