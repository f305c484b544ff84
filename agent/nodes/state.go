// Package nodes holds the per-turn graph node functions. Each node takes and
// returns the shared GraphState; the orchestrator wires them into a strictly
// sequential eino graph.
package nodes

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	statex "github.com/jirapatw/guidebot/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message has no usable content")
	ErrInvalidUser    = errors.New("user id is empty")
)

type GraphInput struct {
	Message contractx.InboundMessage
}

type GraphOutput struct {
	Reply contractx.OutboundReply
}

// GraphState is the turn's working memory. It lives exactly one turn.
type GraphState struct {
	Message contractx.InboundMessage
	Text    string
	Now     time.Time

	Context   *statex.UserContext
	Ephemeral bool // context load failed; this turn runs on a default

	Decision    contractx.StrandDecision
	FinalStrand contractx.Strand
	Result      contractx.AgentResult

	Persisted bool
}

// ValidateRequest normalizes the inbound message into the turn's text
// signal. Location messages become a textual position statement; image
// captions are picked up here and enriched by ResolveMedia later.
func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	if strings.TrimSpace(in.Message.UserID) == "" {
		return nil, ErrInvalidUser
	}

	text := strings.TrimSpace(in.Message.Payload.Text)
	switch in.Message.Kind {
	case contractx.KindLocation:
		pos := fmt.Sprintf("I'm at latitude %.4f, longitude %.4f.", in.Message.Payload.Lat, in.Message.Payload.Lon)
		if text == "" {
			text = pos
		} else {
			text = pos + " " + text
		}
	case contractx.KindImage:
		if text == "" && strings.TrimSpace(in.Message.Payload.MediaRef) == "" {
			return nil, ErrInvalidMessage
		}
	default:
		if text == "" {
			return nil, ErrInvalidMessage
		}
	}

	return &GraphState{
		Message: in.Message,
		Text:    text,
		Now:     nowFn().UTC(),
	}, nil
}
