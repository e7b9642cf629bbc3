// internal/runtime/googleapi.go adapts *gmail.Service to the gmail.Client interface.
package runtime

import (
	"context"
	"fmt"

	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/mailsorter/internal/gmail"
)

const me = "me"

type googleClient struct{ svc *gmail.Service }

// NewGoogleAPIClient wraps an authorised Gmail service.
func NewGoogleAPIClient(svc *gmail.Service) gc.Client { return &googleClient{svc} }

func (g *googleClient) ListRecent(ctx context.Context, limit int) ([]gc.MessageID, error) {
	call := g.svc.Users.Messages.List(me).MaxResults(int64(limit))
	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	ids := make([]gc.MessageID, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, gc.MessageID(m.Id))
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (g *googleClient) GetMetadata(
	ctx context.Context,
	id gc.MessageID,
	headers []string,
) (gc.MessageMeta, error) {
	msg, err := g.svc.Users.Messages.Get(me, string(id)).
		Format("metadata").
		MetadataHeaders(headers...).
		Context(ctx).
		Do()
	if err != nil {
		return gc.MessageMeta{}, err
	}
	meta := gc.MessageMeta{ID: id, Snippet: msg.Snippet, Labels: toLabelIDs(msg.LabelIds)}
	if msg.Payload != nil {
		meta.Headers = make([]gc.Header, 0, len(msg.Payload.Headers))
		for _, hd := range msg.Payload.Headers {
			meta.Headers = append(meta.Headers, gc.Header{Name: hd.Name, Value: hd.Value})
		}
	}
	return meta, nil
}

func (g *googleClient) Modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	req := &gmail.ModifyMessageRequest{}
	if len(ops.AddLabels) > 0 {
		req.AddLabelIds = toStrings(ops.AddLabels)
	}
	if len(ops.RemoveLabels) > 0 {
		req.RemoveLabelIds = toStrings(ops.RemoveLabels)
	}
	_, err := g.svc.Users.Messages.Modify(me, string(id), req).Context(ctx).Do()
	return err
}

func (g *googleClient) ListLabels(ctx context.Context) ([]gc.Label, error) {
	lr, err := g.svc.Users.Labels.List(me).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([]gc.Label, 0, len(lr.Labels))
	for _, l := range lr.Labels {
		out = append(out, gc.Label{ID: gc.LabelID(l.Id), Name: l.Name, Type: l.Type})
	}
	return out, nil
}

func (g *googleClient) CreateLabel(ctx context.Context, name string) (gc.Label, error) {
	created, err := g.svc.Users.Labels.Create(me, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   gc.LabelListShow,
		MessageListVisibility: gc.MessageListShow,
	}).Context(ctx).Do()
	if err != nil {
		return gc.Label{}, fmt.Errorf("create label %q: %w", name, err)
	}
	return gc.Label{ID: gc.LabelID(created.Id), Name: created.Name, Type: created.Type}, nil
}

func (g *googleClient) Profile(ctx context.Context) (string, error) {
	p, err := g.svc.Users.GetProfile(me).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return p.EmailAddress, nil
}

func toStrings(ids []gc.LabelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toLabelIDs(ids []string) []gc.LabelID {
	out := make([]gc.LabelID, len(ids))
	for i, id := range ids {
		out[i] = gc.LabelID(id)
	}
	return out
}
