package main

import (
	"context"
	"net/url"

	"github.com/debcore/apt/internal/acquire"
	"github.com/debcore/apt/internal/planner"
)

// methodBinary maps a URI scheme to the Acquire method worker that speaks
// for it, the same "/usr/lib/apt/methods/<scheme>" layout real apt ships;
// the worker binaries themselves are an external collaborator (spec.md
// §1's "acquire method plugins"), so this only wires the path, it does not
// supply one.
func methodBinary(scheme string) string {
	return "/usr/lib/apt/methods/" + scheme
}

// runPlan enqueues every Item in plan onto its scheme's queue and runs the
// engine to completion, per §4.5's event loop. maxPipeDepth comes from
// aptconf.Config.MaxPipeDepth.
func runPlan(ctx context.Context, plan *planner.Plan, maxPipeDepth int) error {
	engine := acquire.NewEngine(statusSink{})
	engine.MaxPipeDepth = maxPipeDepth

	owner := planOwner{}
	for _, it := range plan.Items {
		u, err := url.Parse(it.URI)
		if err != nil {
			return err
		}
		queueName := u.Scheme + "://" + u.Host
		if _, err := engine.Enqueue(queueName, methodBinary(u.Scheme), u.Scheme, it, owner); err != nil {
			return err
		}
	}
	return engine.Run(ctx)
}
