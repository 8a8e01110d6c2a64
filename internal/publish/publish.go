package publish

import (
	"context"
	"time"

	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/layer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of a publish.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusFailure          Status = "failure"
	StatusNameNotAvailable Status = "name-not-available"
)

// LayerResult reports one layer independently of the others.
type LayerResult struct {
	LayerID  string         `json:"layerId"`
	Status   Status         `json:"status"`
	Error    string         `json:"error,omitempty"`
	Accepted edits.Accepted `json:"-"`
	Rejected int            `json:"rejected" doc:"Features the service refused"`
}

// Outcome is the result of publishing one scenario.
type Outcome struct {
	Status     Status        `json:"status"`
	Error      string        `json:"error,omitempty"`
	ScenarioID string        `json:"scenarioId"`
	ServiceID  string        `json:"serviceId,omitempty"`
	Layers     []LayerResult `json:"layers"`
}

// Publisher maps scenario edits onto service calls.
type Publisher struct {
	client      Client
	concurrency int
}

// NewPublisher creates a publisher issuing at most concurrency layer calls at once.
func NewPublisher(c Client, concurrency int) *Publisher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Publisher{client: c, concurrency: concurrency}
}

// Publish sends the pending edits of every member layer of a scenario. A
// scenario that was never published first needs a free service name; a taken
// name short-circuits before any layer is sent. A failing layer does not stop
// or undo the others.
func (p *Publisher) Publish(ctx context.Context, log edits.Log, scenarioID string) Outcome {
	out := Outcome{ScenarioID: scenarioID}
	s, ok := edits.FindScenario(log, scenarioID)
	if !ok {
		out.Status = StatusFailure
		out.Error = "scenario not found"
		return out
	}

	out.ServiceID = s.PortalID
	if out.ServiceID == "" {
		available, err := p.client.IsServiceNameAvailable(ctx, s.Name)
		if err != nil {
			return failed(out, err)
		}
		if !available {
			out.Status = StatusNameNotAvailable
			return out
		}
		info, err := p.client.CreateService(ctx, s.Name, s.Description)
		if err != nil {
			return failed(out, err)
		}
		out.ServiceID = info.ID
	}

	var pending []edits.LayerEdits
	for _, le := range s.Layers {
		if le.Pending() {
			pending = append(pending, le)
		}
	}
	out.Layers = make([]LayerResult, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, le := range pending {
		g.Go(func() error {
			out.Layers[i] = p.publishLayer(gctx, out.ServiceID, le)
			return nil
		})
	}
	_ = g.Wait()

	out.Status = StatusSuccess
	for _, lr := range out.Layers {
		if lr.Status == StatusFailure {
			out.Status = StatusFailure
			out.Error = "one or more layers failed to publish"
			break
		}
	}
	return out
}

func (p *Publisher) publishLayer(ctx context.Context, serviceID string, le edits.LayerEdits) LayerResult {
	res := LayerResult{LayerID: le.ID}
	req := LayerRequest{
		LayerID:   le.ID,
		LayerName: le.Name,
		LayerType: string(le.LayerType),
		Adds:      layer.Encode(le.Adds, le.Label),
		Updates:   layer.Encode(le.Updates, le.Label),
		Deletes:   le.Deletes,
	}
	resp, err := p.client.ApplyEdits(ctx, serviceID, req)
	if err != nil {
		zap.L().Error("publish: layer failed", zap.String("layer", le.ID), zap.Error(err))
		res.Status = StatusFailure
		res.Error = err.Error()
		return res
	}

	for _, r := range resp.AddResults {
		if !r.Success {
			res.Rejected++
			continue
		}
		res.Accepted.Added = append(res.Accepted.Added, edits.Assignment{PermanentID: r.PermanentID, ObjectID: r.ObjectID, GlobalID: r.GlobalID})
	}
	for _, r := range resp.UpdateResults {
		if !r.Success {
			res.Rejected++
			continue
		}
		res.Accepted.Updated = append(res.Accepted.Updated, r.PermanentID)
	}
	for _, r := range resp.DeleteResults {
		if !r.Success {
			res.Rejected++
			continue
		}
		res.Accepted.Deleted = append(res.Accepted.Deleted, r.PermanentID)
	}

	res.Status = StatusSuccess
	if res.Rejected > 0 {
		res.Status = StatusFailure
		res.Error = "service rejected some features"
	}
	return res
}

func failed(out Outcome, err error) Outcome {
	zap.L().Error("publish: failed", zap.String("scenario", out.ScenarioID), zap.Error(err))
	out.Status = StatusFailure
	out.Error = err.Error()
	return out
}

// Fold writes what the service accepted back into the log. Name collisions and
// service-level failures leave the log untouched; layers that failed keep
// their pending edits while their siblings are promoted.
func Fold(log edits.Log, o Outcome, at time.Time) edits.Log {
	if o.ServiceID == "" || o.Status == StatusNameNotAvailable {
		return log
	}
	out := log
	for _, lr := range o.Layers {
		next, ok := edits.MarkPublished(out, lr.LayerID, o.ServiceID, lr.Accepted, at)
		if ok {
			out = next
		}
	}
	if next, ok := edits.MarkScenarioPublished(out, o.ScenarioID, o.ServiceID); ok {
		out = next
	}
	return out
}
