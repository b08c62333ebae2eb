package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/omni/messenger-watcher/logging"
)

func newTestGauge() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "test_alert",
	}, []string{"chain_id", "block_number", "tx_hash", "msg_hash"})
}

func TestConvertToAlertMetricValues(t *testing.T) {
	t.Parallel()

	values, err := ConvertToAlertMetricValues([]StuckMessage{{
		ChainID:     "1",
		BlockNumber: 123,
		TxHash:      common.HexToHash("0x01"),
		MsgHash:     common.HexToHash("0x02"),
		Age:         3600,
	}})
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, prometheus.Labels{
		"chain_id":     "1",
		"block_number": "123",
		"tx_hash":      common.HexToHash("0x01").String(),
		"msg_hash":     common.HexToHash("0x02").String(),
	}, values[0].Labels())
	require.Equal(t, 3600.0, values[0].Value())
	require.IsType(t, int64(0), StuckMessage{}.Age)

	values, err = ConvertToAlertMetricValues([]FailedRelay{{ChainID: "2", BlockNumber: 5}})
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, 1.0, values[0].Value())

	values, err = ConvertToAlertMetricValues([]FailedRelay{})
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestJob_runOnce(t *testing.T) {
	t.Parallel()

	base, hook := test.NewNullLogger()
	metric := newTestGauge()
	results := []interface{}{
		[]FailedRelay{
			{ChainID: "2", BlockNumber: 5, TxHash: common.HexToHash("0x05"), MsgHash: common.HexToHash("0x06")},
			{ChainID: "2", BlockNumber: 7, TxHash: common.HexToHash("0x07"), MsgHash: common.HexToHash("0x08")},
		},
		[]FailedRelay{},
	}
	calls := 0
	job := &Job{
		logger:   logging.Wrap(logrus.NewEntry(base)),
		Metric:   metric,
		Interval: time.Minute,
		Timeout:  time.Second,
		Params:   &AlertJobParams{WatcherID: "w"},
		Func: func(ctx context.Context, params *AlertJobParams) (interface{}, error) {
			require.Equal(t, "w", params.WatcherID)
			res := results[calls]
			calls++
			return res, nil
		},
	}

	job.runOnce(context.Background())
	require.Equal(t, 2, testutil.CollectAndCount(metric))
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	job.runOnce(context.Background())
	require.Equal(t, 0, testutil.CollectAndCount(metric))

	job.Func = func(context.Context, *AlertJobParams) (interface{}, error) {
		return nil, errors.New("db is down")
	}
	job.runOnce(context.Background())
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
