// Package orchestrator is the engine core: it receives a normalized inbound
// message, runs the per-turn pipeline, and returns exactly one outbound
// reply with the user's context persisted first (or flagged when it wasn't).
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/jirapatw/guidebot/agent/contract"
	nodex "github.com/jirapatw/guidebot/agent/nodes"
	statex "github.com/jirapatw/guidebot/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidUser    = nodex.ErrInvalidUser
)

type Config struct {
	// PendingTTL drops multi-turn flows idle longer than this on the next
	// load. Zero disables the sweep.
	PendingTTL time.Duration `envconfig:"PENDING_TTL" split_words:"true" default:"30m"`
}

type Orchestrator struct {
	store      statex.Store
	classifier contractx.Classifier
	registry   contractx.Registry
	media      contractx.MediaResolver

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	pendingTTL time.Duration
	now        func() time.Time

	// turnLocks serializes turns per user; cross-user turns run in parallel.
	turnLocks sync.Map // userID -> *sync.Mutex
}

func New(
	store statex.Store,
	classifier contractx.Classifier,
	registry contractx.Registry,
	media contractx.MediaResolver,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("context store is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if registry == nil {
		return nil, errors.New("agent registry is required")
	}

	pendingTTL := cfg.PendingTTL
	if pendingTTL < 0 {
		pendingTTL = 0
	}

	o := &Orchestrator{
		store:      store,
		classifier: classifier,
		registry:   registry,
		media:      media,
		pendingTTL: pendingTTL,
		now:        time.Now,
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage processes one inbound message into one outbound reply.
// Turns for the same user are serialized: context load and save bracket the
// turn, and two overlapping turns would otherwise race on the stored
// version and force a retry.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg contractx.InboundMessage) (contractx.OutboundReply, error) {
	mu := o.lockFor(msg.UserID)
	mu.Lock()
	defer mu.Unlock()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{Message: msg})
	if err != nil {
		return contractx.OutboundReply{}, err
	}
	return out.Reply, nil
}

func (o *Orchestrator) lockFor(userID string) *sync.Mutex {
	if mu, ok := o.turnLocks.Load(userID); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := o.turnLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
