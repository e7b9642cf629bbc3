// Package gmailtest provides an in-memory gmail.Client for tests.
package gmailtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/joshsymonds/mailsorter/internal/gmail"
)

// Message is a seeded message.
type Message struct {
	ID      gmail.MessageID
	Subject string
	From    string
	Snippet string
	Labels  []gmail.LabelID
}

// Mailbox is a thread-safe fake mailbox. Messages are listed in the order
// they were added, newest first.
type Mailbox struct {
	mu       sync.Mutex
	order    []gmail.MessageID
	messages map[gmail.MessageID]*Message
	labels   []gmail.Label
	nextID   int

	// Failure injection, keyed by message id.
	GetErr    map[gmail.MessageID]error
	ModifyErr map[gmail.MessageID]error
	ListErr   error
	LabelsErr error
	CreateErr error

	// Address is returned by Profile.
	Address string

	Creates  atomic.Int32
	Modifies atomic.Int32
}

// NewMailbox returns a mailbox containing the system INBOX label.
func NewMailbox(msgs ...Message) *Mailbox {
	mb := &Mailbox{
		messages:  map[gmail.MessageID]*Message{},
		labels:    []gmail.Label{{ID: gmail.LabelInbox, Name: "INBOX", Type: "system"}},
		GetErr:    map[gmail.MessageID]error{},
		ModifyErr: map[gmail.MessageID]error{},
		Address:   "me@example.com",
	}
	for _, m := range msgs {
		mb.Add(m)
	}
	return mb
}

// Add seeds a message; it lands in INBOX unless labels are given.
func (mb *Mailbox) Add(m Message) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(m.Labels) == 0 {
		m.Labels = []gmail.LabelID{gmail.LabelInbox}
	}
	msg := m
	mb.messages[m.ID] = &msg
	mb.order = append([]gmail.MessageID{m.ID}, mb.order...)
}

// AddLabel seeds a user label.
func (mb *Mailbox) AddLabel(id gmail.LabelID, name string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.labels = append(mb.labels, gmail.Label{ID: id, Name: name, Type: "user"})
}

// LabelsOf returns the current labels of a message, sorted.
func (mb *Mailbox) LabelsOf(id gmail.MessageID) []gmail.LabelID {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	msg, ok := mb.messages[id]
	if !ok {
		return nil
	}
	out := append([]gmail.LabelID(nil), msg.Labels...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LabelCount returns how many labels carry name exactly.
func (mb *Mailbox) LabelCount(name string) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, l := range mb.labels {
		if l.Name == name {
			n++
		}
	}
	return n
}

func (mb *Mailbox) ListRecent(ctx context.Context, limit int) ([]gmail.MessageID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.ListErr != nil {
		return nil, mb.ListErr
	}
	ids := append([]gmail.MessageID(nil), mb.order...)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (mb *Mailbox) GetMetadata(
	ctx context.Context,
	id gmail.MessageID,
	headers []string,
) (gmail.MessageMeta, error) {
	_ = headers
	if err := ctx.Err(); err != nil {
		return gmail.MessageMeta{}, err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if err := mb.GetErr[id]; err != nil {
		return gmail.MessageMeta{}, err
	}
	msg, ok := mb.messages[id]
	if !ok {
		return gmail.MessageMeta{}, fmt.Errorf("message %s not found", id)
	}
	meta := gmail.MessageMeta{
		ID:      id,
		Snippet: msg.Snippet,
		Labels:  append([]gmail.LabelID(nil), msg.Labels...),
	}
	if msg.Subject != "" {
		meta.Headers = append(meta.Headers, gmail.Header{Name: "Subject", Value: msg.Subject})
	}
	if msg.From != "" {
		meta.Headers = append(meta.Headers, gmail.Header{Name: "From", Value: msg.From})
	}
	return meta, nil
}

func (mb *Mailbox) Modify(ctx context.Context, id gmail.MessageID, ops gmail.ModifyOps) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.Modifies.Add(1)
	if err := mb.ModifyErr[id]; err != nil {
		return err
	}
	msg, ok := mb.messages[id]
	if !ok {
		return fmt.Errorf("message %s not found", id)
	}
	set := map[gmail.LabelID]struct{}{}
	for _, l := range msg.Labels {
		set[l] = struct{}{}
	}
	for _, l := range ops.AddLabels {
		set[l] = struct{}{}
	}
	for _, l := range ops.RemoveLabels {
		delete(set, l)
	}
	msg.Labels = msg.Labels[:0]
	for l := range set {
		msg.Labels = append(msg.Labels, l)
	}
	return nil
}

func (mb *Mailbox) ListLabels(ctx context.Context) ([]gmail.Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.LabelsErr != nil {
		return nil, mb.LabelsErr
	}
	return append([]gmail.Label(nil), mb.labels...), nil
}

func (mb *Mailbox) CreateLabel(ctx context.Context, name string) (gmail.Label, error) {
	if err := ctx.Err(); err != nil {
		return gmail.Label{}, err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.Creates.Add(1)
	if mb.CreateErr != nil {
		return gmail.Label{}, mb.CreateErr
	}
	mb.nextID++
	l := gmail.Label{ID: gmail.LabelID(fmt.Sprintf("Label_%d", mb.nextID)), Name: name, Type: "user"}
	mb.labels = append(mb.labels, l)
	return l, nil
}

func (mb *Mailbox) Profile(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return mb.Address, nil
}

var _ gmail.Client = (*Mailbox)(nil)
