package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MEKXH/shipgate/internal/notify"
	"github.com/MEKXH/shipgate/internal/policy"
	"github.com/google/uuid"
)

const (
	defaultMaxWait      = time.Hour
	defaultPollInterval = 30 * time.Second
	defaultMarker       = "approve"
)

// ErrNotOpen is returned when a transition targets a request that already
// reached a terminal state.
var ErrNotOpen = errors.New("approval request is not open")

// Config controls gate timing and the approval grammar.
type Config struct {
	MaxWait      time.Duration
	PollInterval time.Duration
	Marker       string
	Approvers    []string
}

// Service owns every approval request state transition. Routing all
// transitions through one Service instance is what guarantees the
// exclusive-writer discipline on request state.
type Service struct {
	store   *Store
	channel notify.Channel
	cfg     Config
	now     func() time.Time
	mu      sync.Mutex
}

// NewService creates a gate service backed by <workspace>/state/approvals.json.
func NewService(workspace string, channel notify.Channel, cfg Config) *Service {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if strings.TrimSpace(cfg.Marker) == "" {
		cfg.Marker = defaultMarker
	}
	return &Service{
		store:   NewStore(workspace),
		channel: channel,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Open creates a new OPEN request for the candidate, atomically superseding
// any request still OPEN on the same lineage. The superseded requests are
// returned so the caller can audit the transition.
func (s *Service) Open(candidateID, lineage, threadID string, decision policy.Decision) (Request, []Request, error) {
	if strings.TrimSpace(candidateID) == "" {
		return Request{}, nil, fmt.Errorf("candidate id is required")
	}
	if strings.TrimSpace(lineage) == "" {
		return Request{}, nil, fmt.Errorf("lineage is required")
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return Request{}, nil, err
	}

	request := Request{
		ID:          uuid.NewString(),
		CandidateID: candidateID,
		Lineage:     lineage,
		ThreadID:    threadID,
		State:       StateOpen,
		Decision:    decision,
		CreatedAt:   now,
	}

	var superseded []Request
	for i := range data.Requests {
		prior := &data.Requests[i]
		if prior.Lineage != lineage || prior.State != StateOpen {
			continue
		}
		prior.State = StateSuperseded
		prior.ResolvedAt = now
		prior.SupersededBy = request.ID
		superseded = append(superseded, *prior)
	}

	data.Requests = append(data.Requests, request)
	if err := s.store.Save(data); err != nil {
		return Request{}, nil, err
	}
	return request, superseded, nil
}

// Get returns the request with the given id.
func (s *Service) Get(id string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return Request{}, err
	}
	for _, req := range data.Requests {
		if req.ID == id {
			return req, nil
		}
	}
	return Request{}, fmt.Errorf("approval request not found: %s", id)
}

// List returns requests matching the query, in creation order.
func (s *Service) List(query Query) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	result := make([]Request, 0, len(data.Requests))
	for _, req := range data.Requests {
		if query.ID != "" && req.ID != query.ID {
			continue
		}
		if query.CandidateID != "" && req.CandidateID != query.CandidateID {
			continue
		}
		if query.Lineage != "" && req.Lineage != query.Lineage {
			continue
		}
		if query.State != "" && req.State != query.State {
			continue
		}
		result = append(result, req)
	}
	return result, nil
}

// Await polls the notification channel until the request reaches a terminal
// state: approved by a privileged reply, timed out after the configured wait,
// or superseded by a newer candidate on the same lineage. Timeout and
// approval are evaluated by the same tick, so exactly one of them wins.
//
// Transient probe failures are retried on the next tick; only elapsed time
// triggers a timeout. A timeout with every probe failed is flagged so
// consumers can tell "nobody approved" from "could not even ask".
func (s *Service) Await(ctx context.Context, id string) (Request, error) {
	probeSucceeded := false

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		request, done, err := s.check(ctx, id, &probeSucceeded)
		if err != nil {
			return Request{}, err
		}
		if done {
			return request, nil
		}

		select {
		case <-ctx.Done():
			return Request{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// check runs one poll tick. It returns done=true with the terminal request
// when the gate resolved.
func (s *Service) check(ctx context.Context, id string, probeSucceeded *bool) (Request, bool, error) {
	request, err := s.Get(id)
	if err != nil {
		return Request{}, false, err
	}
	if request.State.Terminal() {
		// Another writer resolved it, typically a supersession.
		return request, true, nil
	}

	responses, probeErr := s.channel.Responses(ctx, request.ThreadID)
	if probeErr != nil {
		slog.Warn("approval probe failed, will retry",
			"request_id", id,
			"error", probeErr,
		)
	} else {
		*probeSucceeded = true
		if approver, reason, found := s.findApproval(responses); found {
			approved, err := s.approve(id, approver, reason)
			if errors.Is(err, ErrNotOpen) {
				// Lost the race to a supersession; its terminal state wins.
				return approved, true, nil
			}
			if err != nil {
				return Request{}, false, err
			}
			return approved, true, nil
		}
	}

	if s.now().UTC().Sub(request.CreatedAt) > s.cfg.MaxWait {
		timedOut, err := s.timeout(id, !*probeSucceeded)
		if errors.Is(err, ErrNotOpen) {
			return timedOut, true, nil
		}
		if err != nil {
			return Request{}, false, err
		}
		return timedOut, true, nil
	}
	return Request{}, false, nil
}

// findApproval scans thread history for the first well-formed approval from
// a privileged author.
func (s *Service) findApproval(responses []notify.Response) (approver, reason string, found bool) {
	for _, response := range responses {
		parsed, ok, malformed := MatchApproval(s.cfg.Marker, response.Body)
		if malformed {
			slog.Info("approval message missing reason, ignored",
				"author", response.Author,
			)
			continue
		}
		if !ok {
			continue
		}
		if !s.isApprover(response.Author) {
			slog.Info("approval from unprivileged author, ignored",
				"author", response.Author,
			)
			continue
		}
		return response.Author, parsed, true
	}
	return "", "", false
}

// isApprover checks the approvers allow-list. An empty list permits anyone.
func (s *Service) isApprover(author string) bool {
	if len(s.cfg.Approvers) == 0 {
		return true
	}
	for _, allowed := range s.cfg.Approvers {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(author)) {
			return true
		}
	}
	return false
}

func (s *Service) approve(id, approver, reason string) (Request, error) {
	return s.resolve(id, func(req *Request) {
		req.State = StateApproved
		req.Approver = approver
		req.Reason = reason
	})
}

func (s *Service) timeout(id string, probeNeverSucceeded bool) (Request, error) {
	return s.resolve(id, func(req *Request) {
		req.State = StateTimedOut
		req.ProbeNeverSucceeded = probeNeverSucceeded
	})
}

func (s *Service) resolve(id string, mutate func(*Request)) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return Request{}, err
	}

	for i := range data.Requests {
		req := &data.Requests[i]
		if req.ID != id {
			continue
		}
		if req.State != StateOpen {
			return *req, fmt.Errorf("resolve %s: %w", id, ErrNotOpen)
		}

		mutate(req)
		req.ResolvedAt = s.now().UTC()

		if err := s.store.Save(data); err != nil {
			return Request{}, err
		}
		return *req, nil
	}
	return Request{}, fmt.Errorf("approval request not found: %s", id)
}
