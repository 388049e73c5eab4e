package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"lchat/module/chat/model"
	"lchat/service/storage"
	"lchat/tools/errs"
)

// ===== peers and registry =====

type fakePeer struct {
	mu             sync.Mutex
	probeOutcome   ProbeOutcome
	forwardOutcome ProbeOutcome
	requests       []string
	emitted        []string
}

func (p *fakePeer) Emit(event string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitted = append(p.emitted, event)
	return nil
}

func (p *fakePeer) Request(_ context.Context, event string, _ any, _ time.Duration) ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, event)
	if event == EventCheck {
		return ProbeResult{Outcome: p.probeOutcome}
	}
	return ProbeResult{Outcome: p.forwardOutcome}
}

func (p *fakePeer) requestLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

type fakeRegistry map[string]Peer

func (r fakeRegistry) Lookup(userID string) (Peer, bool) {
	p, ok := r[userID]
	return p, ok
}

// ===== presence =====

type fakePresence struct {
	mu        sync.Mutex
	recs      map[string]*storage.PresenceRecord
	published []storage.PresenceRecord
}

func newFakePresence() *fakePresence {
	return &fakePresence{recs: make(map[string]*storage.PresenceRecord)}
}

func (p *fakePresence) SetOnline(_ context.Context, userID, connID string) (*storage.PresenceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := &storage.PresenceRecord{UserID: userID, ConnID: connID, Online: true, LastActive: time.Now().UnixMilli()}
	p.recs[userID] = rec
	return rec, nil
}

func (p *fakePresence) SetOffline(_ context.Context, userID string) (*storage.PresenceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := &storage.PresenceRecord{UserID: userID, Online: false, LastActive: time.Now().UnixMilli()}
	p.recs[userID] = rec
	return rec, nil
}

func (p *fakePresence) Get(_ context.Context, userID string) (*storage.PresenceRecord, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.recs[userID]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (p *fakePresence) PublishStatus(_ context.Context, rec *storage.PresenceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, *rec)
	return nil
}

// ===== users =====

type fakeUsers struct {
	users map[string]*model.UserModel
	keys  map[string]*model.PublicKeyModel
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users: make(map[string]*model.UserModel),
		keys:  make(map[string]*model.PublicKeyModel),
	}
}

func (u *fakeUsers) GetUser(_ context.Context, userID string) (*model.UserModel, error) {
	usr, ok := u.users[userID]
	if !ok {
		return nil, &errs.ErrRecordNotFound
	}
	return usr, nil
}

func (u *fakeUsers) GetPublicKey(_ context.Context, userID string) (*model.PublicKeyModel, error) {
	k, ok := u.keys[userID]
	if !ok {
		return nil, &errs.ErrRecordNotFound
	}
	return k, nil
}

// ===== offline queues =====

type fakeOffline struct {
	mu    sync.Mutex
	msgs  []model.OfflineMessageModel
	acks  []model.OfflineAckModel
	clock int64
}

func newFakeOffline() *fakeOffline { return &fakeOffline{} }

func (o *fakeOffline) SaveMessage(_ context.Context, m *model.OfflineMessageModel) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.msgs {
		if o.msgs[i].RecipientID == m.RecipientID && o.msgs[i].MessageID == m.MessageID {
			created := o.msgs[i].CreatedAt
			o.msgs[i] = *m
			o.msgs[i].CreatedAt = created
			return nil
		}
	}
	o.clock++
	cp := *m
	cp.CreatedAt = o.clock
	o.msgs = append(o.msgs, cp)
	return nil
}

func (o *fakeOffline) ListMessages(_ context.Context, recipientID string) ([]model.OfflineMessageModel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []model.OfflineMessageModel
	for _, m := range o.msgs {
		if m.RecipientID == recipientID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (o *fakeOffline) DeleteMessage(_ context.Context, recipientID, messageID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.msgs[:0]
	for _, m := range o.msgs {
		if m.RecipientID != recipientID || m.MessageID != messageID {
			out = append(out, m)
		}
	}
	o.msgs = out
	return nil
}

func (o *fakeOffline) SaveAck(_ context.Context, a *model.OfflineAckModel) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clock++
	cp := *a
	cp.CreatedAt = o.clock
	o.acks = append(o.acks, cp)
	return nil
}

func (o *fakeOffline) ListAcks(_ context.Context, senderID string) ([]model.OfflineAckModel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []model.OfflineAckModel
	for _, a := range o.acks {
		if a.SenderID == senderID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ackClass(out[i].Status) < ackClass(out[j].Status)
	})
	return out, nil
}

func ackClass(status string) int {
	switch status {
	case model.AckStatusSent:
		return 1
	case model.AckStatusDelivered:
		return 2
	default:
		return 3
	}
}

func (o *fakeOffline) DeleteAcks(_ context.Context, senderID, messageID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.acks[:0]
	for _, a := range o.acks {
		if a.SenderID != senderID || a.MessageID != messageID {
			out = append(out, a)
		}
	}
	o.acks = out
	return nil
}

func (o *fakeOffline) messageCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

func (o *fakeOffline) ackCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.acks)
}

// ===== test connections =====

// testConn builds a WsConn without a socket; frames land in sendChan.
func testConn(id string) *WsConn {
	return &WsConn{
		ConnID:   id,
		pending:  NewPendingReplies(),
		sendChan: make(chan []byte, 64),
		closed:   make(chan struct{}),
		expireAt: time.Now().Add(time.Minute),
	}
}

// drainFrames decodes every frame queued on a test connection.
func drainFrames(c *WsConn) []*Frame {
	var out []*Frame
	for {
		select {
		case raw := <-c.sendChan:
			f, err := ParseFrame(raw)
			if err == nil {
				out = append(out, f)
			}
		default:
			return out
		}
	}
}

// drainEvents decodes the events queued on a test connection.
func drainEvents(c *WsConn) []string {
	var out []string
	for _, f := range drainFrames(c) {
		out = append(out, f.Event)
	}
	return out
}
