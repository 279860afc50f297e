package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder.
// All methods are empty, providing zero overhead when metrics are disabled.
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordSignUp(success bool)                                {}
func (n *NoopMetrics) RecordSignIn(method string, success bool)                 {}
func (n *NoopMetrics) RecordSignOut()                                           {}
func (n *NoopMetrics) RecordOAuthCallback(provider string, success bool)        {}
func (n *NoopMetrics) RecordZapCreated(triggerType string)                      {}
func (n *NoopMetrics) RecordLinkCallback(result string)                         {}
func (n *NoopMetrics) RecordTokenExchange(duration time.Duration, success bool) {}
func (n *NoopMetrics) SetZapCounts(draft, active int)                           {}
func (n *NoopMetrics) SetLinkedTokensCount(count int)                           {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string)                {}
