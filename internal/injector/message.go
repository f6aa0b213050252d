package injector

import (
	"context"
	"errors"
	"fmt"

	"postpilot/internal/dom"

	"github.com/mitchellh/mapstructure"
)

// Message actions understood by Handler.
const (
	ActionInjectPost     = "injectPost"
	ActionGetPageContext = "getPageContext"
)

// ErrUnknownAction is returned by Dispatch for messages it does not handle.
var ErrUnknownAction = errors.New("unknown action")

// Message is a request from the compose UI.
type Message struct {
	Action string `mapstructure:"action"`
	Text   string `mapstructure:"text"`
}

// Response is the reply to a Message. Exactly one field is set.
type Response struct {
	Status  Status `json:"status,omitempty"`
	Context string `json:"context,omitempty"`
}

// Known reports whether Handler routes the message's action.
func (m Message) Known() bool {
	return m.Action == ActionInjectPost || m.Action == ActionGetPageContext
}

// DecodeMessage converts a loosely typed runtime message into a Message.
func DecodeMessage(raw map[string]any) (Message, error) {
	var msg Message
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &msg,
		TagName: "mapstructure",
	})
	if err != nil {
		return Message{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// Handler answers messages on behalf of one page.
type Handler struct {
	injector *Injector
	doc      dom.Document
}

// NewHandler binds an injector to a page.
func NewHandler(inj *Injector, doc dom.Document) *Handler {
	return &Handler{injector: inj, doc: doc}
}

// Dispatch routes a raw message. reply is called exactly once for known actions.
// pending reports that the reply will be delivered after Dispatch returns.
func (h *Handler) Dispatch(ctx context.Context, raw map[string]any, reply func(Response)) (pending bool, err error) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		return false, err
	}

	switch msg.Action {
	case ActionInjectPost:
		return h.injector.Start(ctx, h.doc, msg.Text, func(s Status) {
			reply(Response{Status: s})
		}), nil
	case ActionGetPageContext:
		reply(Response{Context: h.injector.PageContext(h.doc)})
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
}
