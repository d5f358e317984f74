package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer times a method call as a New Relic segment. A nil tracer is
// valid and does nothing.
type MethodTracer struct {
	txn *newrelic.Transaction
	seg *newrelic.Segment

	// owned is set when the tracer started txn and must end it.
	owned bool
}

// TraceMethodCall starts tracing structOrPackageName.methodName. The call is
// recorded as a segment of the transaction carried by ctx. Without one, a
// background transaction is started on the application carried by ctx. With
// neither, nil is returned.
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	name := structOrPackageName + " " + methodName

	if txn := newrelic.FromContext(ctx); txn != nil {
		return &MethodTracer{txn: txn, seg: txn.StartSegment(name)}
	}

	app, ok := appFromContext(ctx)
	if !ok {
		return nil
	}

	txn := app.StartTransaction(name)
	return &MethodTracer{txn: txn, seg: txn.StartSegment(methodName), owned: true}
}

func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	if t != nil {
		t.seg.AddAttribute(key, value)
	}
}

func (t *MethodTracer) AddAttributes(attributes map[string]interface{}) {
	for key, value := range attributes {
		t.AddAttribute(key, value)
	}
}

// OnError notices err on the enclosing transaction.
func (t *MethodTracer) OnError(err error) {
	if t != nil && err != nil {
		t.txn.NoticeError(err)
	}
}

// End completes the trace.
func (t *MethodTracer) End() {
	if t == nil {
		return
	}

	t.seg.End()
	if t.owned {
		t.txn.End()
	}
}
