package promlib

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(CampaignSends.WithLabelValues("sent"))
	CampaignSends.WithLabelValues("sent").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CampaignSends.WithLabelValues("sent")))

	ObserveSince(JobRuns.WithLabelValues("process-queue", "ok"), time.Now())
	assert.Equal(t, 1, testutil.CollectAndCount(JobRuns))
}
