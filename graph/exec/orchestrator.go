package exec

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/nodeflow-go/graph"
	"github.com/dshills/nodeflow-go/graph/emit"
	"github.com/dshills/nodeflow-go/graph/store"
)

// Options configures an Orchestrator. Zero values are valid: a nil
// store disables persistence and restoration, a nil emitter disables
// events, nil metrics disable instrumentation.
type Options struct {
	// WorkflowID identifies the workflow this orchestrator executes.
	WorkflowID string

	// Store persists node execution history and backs result
	// restoration on workflow load. Optional.
	Store store.Store

	// Emitter receives observability events. Optional.
	Emitter emit.Emitter

	// Metrics receives Prometheus instrumentation. Optional.
	Metrics *Metrics

	// Observers are notified of status transitions, progress, and
	// completions. More can be added later via Subscribe.
	Observers []Observer
}

// Orchestrator drives workflow execution against a graph.Model.
//
// It consumes the model read-only: a run request snapshots the graph,
// computes topological levels, and walks them level by level, invoking
// the injected NodeExecutor for every member of a level and never
// dispatching a node before all earlier levels have resolved. Per-node
// status, a bounded per-node result cache, and a bounded ring of run
// sessions are maintained as read models for UI collaborators.
//
// Three request shapes are supported: Run (full graph), RunNode
// (upstream closure of one target, executed from scratch), and
// ContinueFrom (full graph with cached results substituted for
// already-satisfied nodes outside the restart's downstream closure).
//
// Runs are dispatched asynchronously; two or more may be in flight
// concurrently against the same graph. Each run owns one cooperative
// cancellation signal shared by all of its nodes. Status and cache
// writes from overlapping runs are last-write-wins — these are
// UI-observability read models, not a correctness-critical ledger.
//
// Orchestrator implements graph.RunningSet, the capability
// graph.Model's removal guard takes as a parameter.
type Orchestrator struct {
	model    *graph.Model
	executor NodeExecutor
	opts     Options

	mu        sync.Mutex
	statuses  map[string]NodeStatus
	lastErr   map[string]string
	cache     map[string][]Result
	fetched   map[string]bool
	sessions  []*session // oldest first; capped at MaxSessions
	observers []Observer
}

// New creates an Orchestrator over the given model and executor.
func New(model *graph.Model, executor NodeExecutor, opts Options) *Orchestrator {
	return &Orchestrator{
		model:     model,
		executor:  executor,
		opts:      opts,
		statuses:  make(map[string]NodeStatus),
		lastErr:   make(map[string]string),
		cache:     make(map[string][]Result),
		fetched:   make(map[string]bool),
		observers: append([]Observer(nil), opts.Observers...),
	}
}

// Subscribe registers an additional observer.
func (o *Orchestrator) Subscribe(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

// plan is the immutable execution plan a run request computes up front.
type plan struct {
	mode   RunMode
	levels [][]string
	nodes  map[string]graph.Node
	edges  []graph.Edge

	// include restricts execution to a node subset (single-node runs).
	include map[string]bool

	// cacheOK marks nodes whose cached result may substitute for
	// execution (continue-from runs).
	cacheOK map[string]bool
}

// Run executes every node in the graph.
//
// The returned session ID identifies the asynchronous run; use Wait,
// Session, or observers to track it. Returns an UnschedulableError
// before anything executes if the graph contains a cycle.
func (o *Orchestrator) Run(ctx context.Context) (string, error) {
	snap := o.model.Snapshot()
	ids := snap.NodeIDs()

	p, err := o.buildPlan(ModeFull, snap, ids, nil)
	if err != nil {
		return "", err
	}
	return o.launch(ctx, p)
}

// RunNode executes the upstream closure of target (inclusive), every
// member from scratch. Nodes outside the closure are untouched.
func (o *Orchestrator) RunNode(ctx context.Context, target string) (string, error) {
	snap := o.model.Snapshot()
	if !containsNode(snap, target) {
		return "", graph.ErrNodeNotFound
	}

	closure := graph.UpstreamClosure(target, snap.Edges)
	ids := make([]string, 0, len(closure))
	for _, id := range snap.NodeIDs() {
		if closure[id] {
			ids = append(ids, id)
		}
	}

	p, err := o.buildPlan(ModeSingleNode, snap, ids, nil)
	if err != nil {
		return "", err
	}
	return o.launch(ctx, p)
}

// ContinueFrom executes the full graph, re-running start and everything
// downstream of it while substituting cached results for any other node
// that already has one. Nodes without a cached result execute regardless
// of position.
func (o *Orchestrator) ContinueFrom(ctx context.Context, start string) (string, error) {
	snap := o.model.Snapshot()
	if !containsNode(snap, start) {
		return "", graph.ErrNodeNotFound
	}

	mustRun := graph.DownstreamClosure(start, snap.Edges)

	p, err := o.buildPlan(ModeContinueFrom, snap, snap.NodeIDs(), mustRun)
	if err != nil {
		return "", err
	}
	return o.launch(ctx, p)
}

// buildPlan computes levels for the requested node set and validates
// that every requested node is schedulable.
func (o *Orchestrator) buildPlan(mode RunMode, snap graph.Snapshot, ids []string, mustRun map[string]bool) (*plan, error) {
	levels := graph.Levels(ids, snap.Edges)

	scheduled := make(map[string]bool, len(ids))
	for _, level := range levels {
		for _, id := range level {
			scheduled[id] = true
		}
	}
	var unschedulable []string
	for _, id := range ids {
		if !scheduled[id] {
			unschedulable = append(unschedulable, id)
		}
	}
	if len(unschedulable) > 0 {
		return nil, &graph.UnschedulableError{NodeIDs: unschedulable}
	}

	p := &plan{
		mode:    mode,
		levels:  levels,
		nodes:   make(map[string]graph.Node, len(snap.Nodes)),
		edges:   snap.Edges,
		include: make(map[string]bool, len(ids)),
	}
	for _, n := range snap.Nodes {
		p.nodes[n.ID] = n
	}
	for _, id := range ids {
		p.include[id] = true
	}

	if mode == ModeContinueFrom {
		p.cacheOK = make(map[string]bool, len(ids))
		o.mu.Lock()
		for _, id := range ids {
			if !mustRun[id] && len(o.cache[id]) > 0 {
				p.cacheOK[id] = true
			}
		}
		o.mu.Unlock()
	}
	return p, nil
}

// launch creates the run session and dispatches the level walk.
func (o *Orchestrator) launch(ctx context.Context, p *plan) (string, error) {
	runCtx, cancel := context.WithCancel(ctx)

	ids := make([]string, 0, len(p.include))
	for _, level := range p.levels {
		for _, id := range level {
			if p.include[id] {
				ids = append(ids, id)
			}
		}
	}

	sess := &session{
		RunSession: RunSession{
			ID:          uuid.NewString(),
			WorkflowID:  o.opts.WorkflowID,
			Mode:        p.mode,
			StartedAt:   time.Now(),
			NodeIDs:     ids,
			NodeResults: make(map[string]Outcome, len(ids)),
			NodeCosts:   make(map[string]float64, len(ids)),
			Status:      SessionRunning,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, id := range ids {
		sess.NodeResults[id] = OutcomeRunning
	}

	o.mu.Lock()
	o.sessions = append(o.sessions, sess)
	if len(o.sessions) > MaxSessions {
		o.sessions = o.sessions[1:]
	}
	o.mu.Unlock()

	o.emit(emit.Event{SessionID: sess.ID, Msg: "session_start", Meta: map[string]any{
		"mode":  string(p.mode),
		"nodes": len(ids),
	}})
	if o.opts.Metrics != nil {
		o.opts.Metrics.SessionStarted(string(p.mode))
	}

	go o.runLevels(runCtx, sess, p)
	return sess.ID, nil
}

// runLevels walks the plan level by level. Nodes within a level are
// dispatched concurrently and awaited together; no node of a later level
// starts before every node of the current level has resolved.
func (o *Orchestrator) runLevels(ctx context.Context, sess *session, p *plan) {
	for _, level := range p.levels {
		if ctx.Err() != nil {
			break
		}
		var wg sync.WaitGroup
		for _, nodeID := range level {
			if !p.include[nodeID] {
				continue
			}
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				o.execNode(ctx, sess, p, id)
			}(nodeID)
		}
		wg.Wait()
	}
	o.finish(ctx, sess)
}

// execNode runs one node (or satisfies it from cache) and records the
// outcome in the owning session.
func (o *Orchestrator) execNode(ctx context.Context, sess *session, p *plan, nodeID string) {
	if p.cacheOK != nil && p.cacheOK[nodeID] {
		o.satisfyFromCache(sess, nodeID)
		return
	}
	if ctx.Err() != nil {
		// The run was cancelled before this node was dispatched;
		// finish() reconciles statuses.
		return
	}

	o.setStatus(nodeID, StatusRunning, "")
	o.emit(emit.Event{SessionID: sess.ID, NodeID: nodeID, Msg: "node_start"})
	if o.opts.Metrics != nil {
		o.opts.Metrics.NodeDispatched()
	}

	inputs := o.gatherInputs(p, nodeID)
	start := time.Now()
	out, err := o.executor.Execute(ctx, p.nodes[nodeID], inputs, func(percent float64, message string) {
		o.notifyProgress(nodeID, percent, message)
	})
	elapsed := time.Since(start)
	if o.opts.Metrics != nil {
		o.opts.Metrics.NodeResolved()
	}

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			// Cooperative abort: not an error state. finish() returns
			// the node to idle.
			return
		}
		o.recordFailure(ctx, sess, p, nodeID, err, elapsed)
		return
	}
	o.recordSuccess(ctx, sess, p, nodeID, out, elapsed)
}

func (o *Orchestrator) recordSuccess(ctx context.Context, sess *session, p *plan, nodeID string, out Output, elapsed time.Duration) {
	res := Result{
		URLs:       out.URLs,
		ProducedAt: time.Now(),
		Cost:       out.Cost,
		DurationMs: elapsed.Milliseconds(),
	}

	status := StatusConfirmed
	if out.RequiresAck {
		status = StatusUnconfirmed
	}

	o.mu.Lock()
	o.cache[nodeID] = prependResult(o.cache[nodeID], res)
	if owner := o.owningSessionLocked(nodeID); owner != nil {
		owner.NodeResults[nodeID] = OutcomeDone
		owner.NodeCosts[nodeID] += out.Cost
	}
	o.mu.Unlock()

	o.setStatus(nodeID, status, "")
	o.notifyComplete(nodeID, res)
	o.emit(emit.Event{SessionID: sess.ID, NodeID: nodeID, Msg: "node_end", Meta: map[string]any{
		"duration_ms": elapsed.Milliseconds(),
		"cost_usd":    out.Cost,
		"urls":        len(out.URLs),
	}})
	if o.opts.Metrics != nil {
		o.opts.Metrics.NodeExecuted(p.nodes[nodeID].Kind, "success", elapsed)
	}

	if o.opts.Store != nil {
		rec := store.ExecutionRecord{
			Status:     store.StatusSuccess,
			ResultURLs: out.URLs,
			Cost:       out.Cost,
			DurationMs: elapsed.Milliseconds(),
			CreatedAt:  res.ProducedAt,
		}
		if err := o.opts.Store.SaveExecution(ctx, o.opts.WorkflowID, nodeID, rec); err != nil {
			o.emit(emit.Event{SessionID: sess.ID, NodeID: nodeID, Msg: "store_error", Meta: map[string]any{
				"error": err.Error(),
			}})
		}
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, sess *session, p *plan, nodeID string, execErr error, elapsed time.Duration) {
	o.mu.Lock()
	if owner := o.owningSessionLocked(nodeID); owner != nil {
		owner.NodeResults[nodeID] = OutcomeError
	}
	o.mu.Unlock()

	o.setStatus(nodeID, StatusError, execErr.Error())
	o.emit(emit.Event{SessionID: sess.ID, NodeID: nodeID, Msg: "node_error", Meta: map[string]any{
		"error":       execErr.Error(),
		"duration_ms": elapsed.Milliseconds(),
	}})
	if o.opts.Metrics != nil {
		o.opts.Metrics.NodeExecuted(p.nodes[nodeID].Kind, "error", elapsed)
	}

	if o.opts.Store != nil {
		rec := store.ExecutionRecord{
			Status:     store.StatusError,
			Message:    execErr.Error(),
			DurationMs: elapsed.Milliseconds(),
			CreatedAt:  time.Now(),
		}
		if err := o.opts.Store.SaveExecution(ctx, o.opts.WorkflowID, nodeID, rec); err != nil {
			o.emit(emit.Event{SessionID: sess.ID, NodeID: nodeID, Msg: "store_error", Meta: map[string]any{
				"error": err.Error(),
			}})
		}
	}
}

// satisfyFromCache resolves a continue-from node with its newest cached
// result instead of invoking the executor. The live status is left
// untouched.
func (o *Orchestrator) satisfyFromCache(sess *session, nodeID string) {
	o.mu.Lock()
	if owner := o.owningSessionLocked(nodeID); owner != nil {
		// A cached result satisfies the node but incurs no new cost.
		owner.NodeResults[nodeID] = OutcomeDone
	}
	o.mu.Unlock()

	o.emit(emit.Event{SessionID: sess.ID, NodeID: nodeID, Msg: "node_cached"})
	if o.opts.Metrics != nil {
		o.opts.Metrics.CacheHit()
	}
}

// gatherInputs resolves the node's incoming edges to its upstream nodes'
// most recent results, keyed by target handle.
func (o *Orchestrator) gatherInputs(p *plan, nodeID string) map[string]Input {
	inputs := make(map[string]Input)
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range p.edges {
		if e.Target != nodeID {
			continue
		}
		in := Input{SourceNodeID: e.Source, SourceHandle: e.SourceHandle}
		if results := o.cache[e.Source]; len(results) > 0 {
			in.URLs = append([]string(nil), results[0].URLs...)
		}
		inputs[e.TargetHandle] = in
	}
	return inputs
}

// finish closes the session once every listed node has resolved (or the
// run was cancelled). Cancellation returns still-running nodes to idle —
// not error — and never rolls back completed results.
func (o *Orchestrator) finish(ctx context.Context, sess *session) {
	cancelled := ctx.Err() != nil

	var toIdle []string
	o.mu.Lock()
	anyError := false
	for id, outcome := range sess.NodeResults {
		switch outcome {
		case OutcomeError:
			anyError = true
		case OutcomeRunning:
			if cancelled && o.statuses[id] == StatusRunning {
				toIdle = append(toIdle, id)
			}
		}
	}
	switch {
	case cancelled:
		sess.Status = SessionCancelled
	case anyError:
		sess.Status = SessionError
	default:
		sess.Status = SessionCompleted
	}
	finalStatus := sess.Status
	o.mu.Unlock()

	for _, id := range toIdle {
		o.setStatus(id, StatusIdle, "")
	}

	o.emit(emit.Event{SessionID: sess.ID, Msg: "session_end", Meta: map[string]any{
		"status": string(finalStatus),
	}})
	if o.opts.Metrics != nil {
		o.opts.Metrics.SessionFinished(string(finalStatus))
	}
	sess.cancel() // release the run context
	close(sess.done)
}

// Cancel cooperatively aborts a running session. All nodes of that run
// still running return to idle and the session is marked cancelled.
// Returns false if the session is unknown or already terminal.
//
// Sessions do not share cancellation signals: cancelling one run never
// affects another in flight against the same graph.
func (o *Orchestrator) Cancel(sessionID string) bool {
	o.mu.Lock()
	var target *session
	for _, s := range o.sessions {
		if s.ID == sessionID {
			target = s
			break
		}
	}
	running := target != nil && target.Status == SessionRunning
	o.mu.Unlock()

	if !running {
		return false
	}
	target.cancel()
	return true
}

// Wait blocks until the session reaches a terminal state. Returns false
// if the session is unknown (e.g. already evicted from the ring).
func (o *Orchestrator) Wait(sessionID string) bool {
	o.mu.Lock()
	var target *session
	for _, s := range o.sessions {
		if s.ID == sessionID {
			target = s
			break
		}
	}
	o.mu.Unlock()

	if target == nil {
		return false
	}
	<-target.done
	return true
}

// owningSessionLocked returns the most-recently-created still-running
// session that lists nodeID, so overlapping runs attribute results to
// the correct session. Caller holds o.mu.
func (o *Orchestrator) owningSessionLocked(nodeID string) *session {
	for i := len(o.sessions) - 1; i >= 0; i-- {
		s := o.sessions[i]
		if s.Status != SessionRunning {
			continue
		}
		if _, listed := s.NodeResults[nodeID]; listed {
			return s
		}
	}
	return nil
}

// IsRunning reports whether the node's live status is running. This is
// the graph.RunningSet capability the model's removal guard consumes.
func (o *Orchestrator) IsRunning(nodeID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statuses[nodeID] == StatusRunning
}

// Status returns the node's live status (StatusIdle when never run).
func (o *Orchestrator) Status(nodeID string) NodeStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.statuses[nodeID]; ok {
		return s
	}
	return StatusIdle
}

// LastError returns the node's most recent execution error message, or
// empty when the last execution succeeded.
func (o *Orchestrator) LastError(nodeID string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr[nodeID]
}

// Statuses returns a copy of the live status map.
func (o *Orchestrator) Statuses() map[string]NodeStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]NodeStatus, len(o.statuses))
	for k, v := range o.statuses {
		out[k] = v
	}
	return out
}

// Results returns a copy of the node's cached results, newest first.
func (o *Orchestrator) Results(nodeID string) []Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	results := o.cache[nodeID]
	out := make([]Result, len(results))
	copy(out, results)
	return out
}

// Sessions returns copies of the retained sessions, newest first.
func (o *Orchestrator) Sessions() []RunSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]RunSession, 0, len(o.sessions))
	for i := len(o.sessions) - 1; i >= 0; i-- {
		out = append(out, o.sessions[i].clone())
	}
	return out
}

// Session returns a copy of one session by ID.
func (o *Orchestrator) Session(sessionID string) (RunSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.sessions {
		if s.ID == sessionID {
			return s.clone(), true
		}
	}
	return RunSession{}, false
}

// Confirm acknowledges an unconfirmed result, moving the node to
// confirmed. No-op unless the node is currently unconfirmed.
func (o *Orchestrator) Confirm(nodeID string) bool {
	o.mu.Lock()
	if o.statuses[nodeID] != StatusUnconfirmed {
		o.mu.Unlock()
		return false
	}
	o.mu.Unlock()
	o.setStatus(nodeID, StatusConfirmed, "")
	return true
}

// ClearResults drops a node's in-memory results, its restoration marker,
// and — when a store is configured — its persisted history. Call this
// when the node's upstream configuration changes incompatibly (e.g. it
// now calls a different external executor).
func (o *Orchestrator) ClearResults(ctx context.Context, nodeID string) error {
	o.mu.Lock()
	delete(o.cache, nodeID)
	delete(o.fetched, nodeID)
	o.mu.Unlock()

	if o.opts.Store != nil {
		return o.opts.Store.ClearHistory(ctx, o.opts.WorkflowID, nodeID)
	}
	return nil
}

// RestoreResults lazily fetches a node's persisted execution history and
// merges it into the result cache.
//
// The fetch happens at most once per node per orchestrator lifetime,
// tracked by a per-node marker, so repeated UI mounts don't re-fetch.
// Successful records are merged newest-first, deduplicated by creation
// timestamp; in-memory results are never displaced by staler persisted
// ones. No-op without a configured store.
func (o *Orchestrator) RestoreResults(ctx context.Context, nodeID string) error {
	if o.opts.Store == nil {
		return nil
	}

	o.mu.Lock()
	if o.fetched[nodeID] {
		o.mu.Unlock()
		return nil
	}
	o.fetched[nodeID] = true
	o.mu.Unlock()

	records, err := o.opts.Store.History(ctx, o.opts.WorkflowID, nodeID)
	if err != nil {
		return err
	}

	restored := make([]Result, 0, len(records))
	for _, rec := range records {
		if rec.Status != store.StatusSuccess {
			continue
		}
		restored = append(restored, Result{
			URLs:       rec.ResultURLs,
			ProducedAt: rec.CreatedAt,
			Cost:       rec.Cost,
			DurationMs: rec.DurationMs,
		})
	}

	o.mu.Lock()
	o.cache[nodeID] = mergeResults(o.cache[nodeID], restored)
	merged := len(o.cache[nodeID])
	o.mu.Unlock()

	o.emit(emit.Event{NodeID: nodeID, Msg: "history_restored", Meta: map[string]any{
		"records": len(records),
		"cached":  merged,
	}})
	return nil
}

// setStatus records a live status transition and fans it out.
func (o *Orchestrator) setStatus(nodeID string, status NodeStatus, errMsg string) {
	o.mu.Lock()
	o.statuses[nodeID] = status
	if status == StatusError {
		o.lastErr[nodeID] = errMsg
	} else {
		delete(o.lastErr, nodeID)
	}
	observers := append([]Observer(nil), o.observers...)
	o.mu.Unlock()

	for _, obs := range observers {
		obs.NodeStatus(nodeID, status, errMsg)
	}
}

func (o *Orchestrator) notifyProgress(nodeID string, percent float64, message string) {
	o.mu.Lock()
	observers := append([]Observer(nil), o.observers...)
	o.mu.Unlock()
	for _, obs := range observers {
		obs.Progress(nodeID, percent, message)
	}
}

func (o *Orchestrator) notifyComplete(nodeID string, res Result) {
	o.mu.Lock()
	observers := append([]Observer(nil), o.observers...)
	o.mu.Unlock()
	for _, obs := range observers {
		obs.NodeComplete(nodeID, res)
	}
}

func (o *Orchestrator) emit(event emit.Event) {
	if o.opts.Emitter != nil {
		o.opts.Emitter.Emit(event)
	}
}

func containsNode(snap graph.Snapshot, nodeID string) bool {
	for _, n := range snap.Nodes {
		if n.ID == nodeID {
			return true
		}
	}
	return false
}
