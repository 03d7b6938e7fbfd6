// Package orchestrator drives a candidate through the full gate lifecycle:
// reviewer dispatch, decision aggregation, approval gating, and deployment.
// Every meaningful transition lands in the audit log before the run moves on.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MEKXH/shipgate/internal/audit"
	"github.com/MEKXH/shipgate/internal/deploy"
	"github.com/MEKXH/shipgate/internal/gate"
	"github.com/MEKXH/shipgate/internal/metrics"
	"github.com/MEKXH/shipgate/internal/notify"
	"github.com/MEKXH/shipgate/internal/policy"
	"github.com/MEKXH/shipgate/internal/review"
)

// Result is the final outcome of one orchestrated run.
type Result string

const (
	ResultDeployed Result = "deployed"
	ResultAborted  Result = "aborted"
)

// Outcome carries everything a caller needs to render after a run: the
// aggregated decision, the approval request if one was opened, and the final
// result.
type Outcome struct {
	Result   Result
	Decision policy.Decision
	Request  *gate.Request
}

// Orchestrator sequences reviewers and the approval gate for candidates.
// Runs on the same lineage are serialized through decision and gate opening
// so supersession order matches arrival order.
type Orchestrator struct {
	registry *review.Registry
	policy   policy.Policy
	gate     *gate.Service
	audit    *audit.Log
	channel  notify.Channel
	deployer deploy.Controller
	now      func() time.Time

	runtimeMetric *metrics.RuntimeMetrics

	mu       sync.Mutex
	lineages map[string]*sync.Mutex
}

// New creates an orchestrator. At least one reviewer must be registered;
// a gate with nothing to say about a candidate cannot produce a decision.
func New(registry *review.Registry, pol policy.Policy, gateSvc *gate.Service, auditLog *audit.Log, channel notify.Channel, deployer deploy.Controller) (*Orchestrator, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("at least one reviewer must be registered")
	}
	if gateSvc == nil {
		return nil, fmt.Errorf("gate service is required")
	}
	if auditLog == nil {
		return nil, fmt.Errorf("audit log is required")
	}
	if deployer == nil {
		deployer = deploy.NoOp{}
	}
	return &Orchestrator{
		registry: registry,
		policy:   pol,
		gate:     gateSvc,
		audit:    auditLog,
		channel:  channel,
		deployer: deployer,
		now:      time.Now,
		lineages: make(map[string]*sync.Mutex),
	}, nil
}

// SetRuntimeMetrics attaches a runtime metrics recorder for reviewer and
// gate outcome stats.
func (o *Orchestrator) SetRuntimeMetrics(recorder *metrics.RuntimeMetrics) {
	o.runtimeMetric = recorder
}

// Run takes a candidate through review, decision, and (when blocked) the
// approval gate. The error return reports infrastructure failures only; a
// timed-out or superseded gate is a normal ResultAborted outcome.
func (o *Orchestrator) Run(ctx context.Context, candidate review.Candidate) (Outcome, error) {
	if candidate.ID == "" {
		return Outcome{}, fmt.Errorf("candidate id is required")
	}
	if candidate.Lineage == "" {
		return Outcome{}, fmt.Errorf("candidate lineage is required")
	}

	decision, request, err := o.decide(ctx, candidate)
	if err != nil {
		return Outcome{}, err
	}

	if decision.Outcome == policy.OutcomeAllow {
		if err := o.publish(ctx, candidate.ID); err != nil {
			return Outcome{Result: ResultAborted, Decision: decision}, err
		}
		return Outcome{Result: ResultDeployed, Decision: decision}, nil
	}

	return o.finish(ctx, candidate.ID, decision, request)
}

// Resume re-attaches to approval requests left OPEN by a previous process.
// Each is awaited in the background and driven to its terminal state with the
// same audit and deployment handling as a live run. Returns how many requests
// were picked up.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	open, err := o.gate.List(gate.Query{State: gate.StateOpen})
	if err != nil {
		return 0, fmt.Errorf("list open approval requests: %w", err)
	}

	for _, request := range open {
		req := request
		slog.Info("resuming open approval request",
			"request_id", req.ID,
			"candidate_id", req.CandidateID,
			"lineage", req.Lineage,
		)
		go func() {
			if _, err := o.finish(ctx, req.CandidateID, req.Decision, &req); err != nil {
				slog.Error("resumed approval request failed",
					"request_id", req.ID,
					"candidate_id", req.CandidateID,
					"error", err,
				)
			}
		}()
	}
	return len(open), nil
}

// finish waits for the gate to resolve the request and carries its terminal
// state through audit and deployment. The request's persisted decision is
// enough to reconstruct the run, so finish also serves requests inherited
// from a previous process.
func (o *Orchestrator) finish(ctx context.Context, candidateID string, decision policy.Decision, request *gate.Request) (Outcome, error) {
	resolved, err := o.gate.Await(ctx, request.ID)
	if err != nil {
		return Outcome{Result: ResultAborted, Decision: decision, Request: request}, fmt.Errorf("await approval: %w", err)
	}
	request = &resolved

	switch resolved.State {
	case gate.StateApproved:
		o.append(audit.Record{
			CandidateID: candidateID,
			Event:       audit.EventApproved,
			Detail: map[string]any{
				"request_id": resolved.ID,
				"approver":   resolved.Approver,
				"reason":     resolved.Reason,
			},
		})
		o.recordGateOutcome("approved")
		if err := o.publish(ctx, candidateID); err != nil {
			return Outcome{Result: ResultAborted, Decision: decision, Request: request}, err
		}
		return Outcome{Result: ResultDeployed, Decision: decision, Request: request}, nil

	case gate.StateTimedOut:
		o.append(audit.Record{
			CandidateID: candidateID,
			Event:       audit.EventTimedOut,
			Detail: map[string]any{
				"request_id":            resolved.ID,
				"probe_never_succeeded": resolved.ProbeNeverSucceeded,
			},
		})
		o.recordGateOutcome("timed_out")
		o.abort(candidateID, "gate timed out")
		return Outcome{Result: ResultAborted, Decision: decision, Request: request}, nil

	case gate.StateSuperseded:
		o.append(audit.Record{
			CandidateID: candidateID,
			Event:       audit.EventSuperseded,
			Detail: map[string]any{
				"request_id":    resolved.ID,
				"superseded_by": resolved.SupersededBy,
			},
		})
		o.recordGateOutcome("superseded")
		o.abort(candidateID, "superseded by newer candidate")
		return Outcome{Result: ResultAborted, Decision: decision, Request: request}, nil
	}

	return Outcome{}, fmt.Errorf("gate resolved to unexpected state %q", resolved.State)
}

// decide dispatches every reviewer, aggregates the decision, and opens the
// gate when blocked. The lineage lock covers decision and gate opening only:
// waiting for approval happens outside it, so a newer candidate on the same
// lineage can supersede a request still being awaited.
func (o *Orchestrator) decide(ctx context.Context, candidate review.Candidate) (policy.Decision, *gate.Request, error) {
	lock := o.lineageLock(candidate.Lineage)
	lock.Lock()
	defer lock.Unlock()

	reports, err := o.dispatch(ctx, candidate)
	if err != nil {
		return policy.Decision{}, nil, err
	}

	decision, err := o.policy.Aggregate(candidate.ID, reports, o.registry.IDs(), o.now().UTC())
	if err != nil {
		return policy.Decision{}, nil, fmt.Errorf("aggregate decision: %w", err)
	}

	o.append(audit.Record{
		CandidateID: candidate.ID,
		Event:       audit.EventDecided,
		Detail: map[string]any{
			"outcome":           string(decision.Outcome),
			"blocking_findings": len(decision.BlockingFindings),
			"total_findings":    len(decision.AllFindings),
		},
	})
	o.recordGateOutcome(string(decision.Outcome))

	if decision.Outcome == policy.OutcomeAllow {
		return decision, nil, nil
	}

	threadID := o.post(ctx, candidate.ID, decision)
	request, superseded, err := o.gate.Open(candidate.ID, candidate.Lineage, threadID, decision)
	if err != nil {
		return policy.Decision{}, nil, fmt.Errorf("open gate: %w", err)
	}
	for _, prior := range superseded {
		slog.Info("prior approval request superseded",
			"request_id", prior.ID,
			"candidate_id", prior.CandidateID,
			"superseded_by", request.ID,
		)
	}

	o.append(audit.Record{
		CandidateID: candidate.ID,
		Event:       audit.EventGateOpened,
		Detail: map[string]any{
			"request_id": request.ID,
			"lineage":    candidate.Lineage,
			"thread_id":  threadID,
		},
	})
	return decision, &request, nil
}

// dispatch runs every registered reviewer concurrently. Reports come back in
// registration order regardless of completion order; a failing reviewer
// contributes its synthetic failure report rather than sinking the run.
func (o *Orchestrator) dispatch(ctx context.Context, candidate review.Candidate) ([]review.Report, error) {
	reviewers := o.registry.Reviewers()
	reports := make([]review.Report, len(reviewers))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, rev := range reviewers {
		group.Go(func() error {
			start := time.Now()
			report, runErr := o.registry.Run(groupCtx, rev, candidate)
			if o.runtimeMetric != nil {
				if _, err := o.runtimeMetric.RecordReviewerRun(time.Since(start), runErr); err != nil {
					slog.Warn("failed to record reviewer metrics", "error", err)
				}
			}
			reports[i] = report
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// post announces the blocked decision on the notification channel. A failed
// post still opens the gate: approvers may have other ways in, and the
// timeout flags the run as never reachable if they do not.
func (o *Orchestrator) post(ctx context.Context, candidateID string, decision policy.Decision) string {
	if o.channel == nil {
		return ""
	}
	text := blockedNotice(candidateID, decision)
	threadID, err := o.channel.Post(ctx, candidateID, text)
	if err != nil {
		slog.Warn("failed to post approval notice, gate opens without a thread",
			"candidate_id", candidateID,
			"channel", o.channel.Name(),
			"error", err,
		)
		return ""
	}
	return threadID
}

func (o *Orchestrator) publish(ctx context.Context, candidateID string) error {
	if err := o.deployer.Publish(ctx, candidateID); err != nil {
		o.append(audit.Record{
			CandidateID: candidateID,
			Event:       audit.EventAborted,
			Detail:      map[string]any{"reason": fmt.Sprintf("publish failed: %v", err)},
		})
		o.recordGateOutcome("aborted")
		return fmt.Errorf("publish candidate %s: %w", candidateID, err)
	}
	o.append(audit.Record{
		CandidateID: candidateID,
		Event:       audit.EventDeployed,
	})
	o.recordGateOutcome("deployed")
	return nil
}

func (o *Orchestrator) abort(candidateID, reason string) {
	o.append(audit.Record{
		CandidateID: candidateID,
		Event:       audit.EventAborted,
		Detail:      map[string]any{"reason": reason},
	})
	o.recordGateOutcome("aborted")
}

// append writes an audit record stamped with the orchestrator clock. Audit
// write failures are logged, not fatal: an unreachable audit file must not
// strand a candidate mid-run.
func (o *Orchestrator) append(record audit.Record) {
	record.Time = o.now().UTC()
	if err := o.audit.Append(record); err != nil {
		slog.Error("failed to append audit record",
			"candidate_id", record.CandidateID,
			"event", record.Event,
			"error", err,
		)
	}
}

func (o *Orchestrator) recordGateOutcome(outcome string) {
	if o.runtimeMetric == nil {
		return
	}
	if _, err := o.runtimeMetric.RecordGateOutcome(outcome); err != nil {
		slog.Warn("failed to record gate outcome metrics", "error", err)
	}
}

func (o *Orchestrator) lineageLock(lineage string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.lineages[lineage]
	if !ok {
		lock = &sync.Mutex{}
		o.lineages[lineage] = lock
	}
	return lock
}

func blockedNotice(candidateID string, decision policy.Decision) string {
	text := fmt.Sprintf("Deployment of %s is blocked by %d finding(s). Reply \"approve: <reason>\" to release it.",
		candidateID, len(decision.BlockingFindings))
	for _, finding := range decision.BlockingFindings {
		text += fmt.Sprintf("\n- [%s] %s: %s", finding.Severity, finding.Kind, finding.Message)
	}
	return text
}
