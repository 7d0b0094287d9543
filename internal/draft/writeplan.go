package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkdeck/inkdeck/internal/content"
	"github.com/inkdeck/inkdeck/internal/store"
)

// Updater applies one candidate write shape. Satisfied by the store client.
type Updater interface {
	Update(ctx context.Context, id string, req store.UpdateRequest) (content.Item, error)
}

// WriteRequest is one candidate write shape: the same title and body, with
// the body filed under a specific column name.
type WriteRequest struct {
	Title      string
	Body       string
	BodyColumn string
	Status     *content.Status
}

// WritePlan is the ordered candidate list for one save or publish. The
// primary shape is tried first; a schema mismatch falls back to the next
// shape exactly once. Any other failure, and any failure of the fallback,
// surfaces immediately.
type WritePlan struct {
	ID       string
	Requests []WriteRequest
}

// Execute runs the plan against the store.
func (p WritePlan) Execute(ctx context.Context, up Updater) (content.Item, error) {
	if len(p.Requests) == 0 {
		return content.Item{}, fmt.Errorf("draft: write plan has no candidates")
	}
	item, err := up.Update(ctx, p.ID, p.Requests[0].storeRequest())
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, content.ErrSchemaMismatch) || len(p.Requests) < 2 {
		return content.Item{}, err
	}
	return up.Update(ctx, p.ID, p.Requests[1].storeRequest())
}

func (r WriteRequest) storeRequest() store.UpdateRequest {
	title := r.Title
	body := r.Body
	req := store.UpdateRequest{
		Title:      &title,
		Body:       &body,
		BodyColumn: r.BodyColumn,
	}
	if r.Status != nil {
		status := *r.Status
		req.Status = &status
	}
	return req
}
