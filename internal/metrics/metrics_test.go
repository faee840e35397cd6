// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(NewsletterSendsTotal.WithLabelValues("sent", "template"))
	NewsletterSendsTotal.WithLabelValues("sent", "template").Inc()
	after := testutil.ToFloat64(NewsletterSendsTotal.WithLabelValues("sent", "template"))

	if after != before+1 {
		t.Errorf("counter did not increment: before=%v after=%v", before, after)
	}
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	CircuitBreakerState.WithLabelValues("test-breaker").Set(2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")); got != 2 {
		t.Errorf("gauge = %v, want 2", got)
	}
}
