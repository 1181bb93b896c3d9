package capture

import (
	"github.com/dgnsrekt/portal_scribe/internal/msgchan"
)

// BodyHandler answers GET_REQUEST_BODY messages from a Store. It is
// the capture-context end of the message channel.
type BodyHandler struct {
	store *Store
}

func NewBodyHandler(store *Store) *BodyHandler {
	return &BodyHandler{store: store}
}

func (h *BodyHandler) Handle(req msgchan.Request) msgchan.Response {
	if req.Type != msgchan.TypeGetRequestBody {
		return msgchan.Response{ID: req.ID}
	}

	entry, ok := h.store.Take(req.URL)
	if !ok {
		return msgchan.Response{ID: req.ID}
	}
	return msgchan.Response{
		ID:      req.ID,
		Success: true,
		Body:    entry.Body,
		Method:  entry.Method,
	}
}
