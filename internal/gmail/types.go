package gmail

import "strings"

// MessageID is the opaque, provider-assigned message identifier.
type MessageID string

// LabelID is the opaque, provider-assigned label identifier.
type LabelID string

// System labels referenced by the pipeline.
const (
	LabelInbox  LabelID = "INBOX"
	LabelUnread LabelID = "UNREAD"
	LabelSpam   LabelID = "SPAM"
	LabelTrash  LabelID = "TRASH"
)

// Header is a single message header as returned by the API.
type Header struct {
	Name  string
	Value string
}

// MessageMeta is the metadata view of a message (headers only, no body).
type MessageMeta struct {
	ID      MessageID
	Labels  []LabelID
	Headers []Header
	Snippet string
}

// Header returns the first value of the named header. Matching is
// case-insensitive because providers do not agree on header casing.
func (m MessageMeta) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Label is a provider-side tag.
type Label struct {
	ID   LabelID
	Name string
	Type string
}

// ModifyOps describes a single label mutation on one message.
type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}

// Visibility flags applied to labels we create.
const (
	LabelListShow   = "labelShow"
	MessageListShow = "show"
)
