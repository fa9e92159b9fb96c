package backend

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/prometheus/client_golang/api"
	apiv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// Prometheus counts request events through the Prometheus instant-query API.
type Prometheus struct {
	client apiv1.API
}

func NewPrometheus(endpoint string) (*Prometheus, error) {
	cfg := api.Config{
		Address: endpoint,
		RoundTripper: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Prometheus{client: apiv1.NewAPI(client)}, nil
}

func (p *Prometheus) CountRange(ctx context.Context, selector string, from, to time.Time) (int64, error) {
	window := int(to.Sub(from).Seconds())
	expr := fmt.Sprintf("sum(count_over_time(%s[%ds]))", selector, window)

	value, _, err := p.client.Query(ctx, expr, to)
	if err != nil {
		return 0, errs.Wrap(errs.CodeBackendUnavailable, "prometheus query failed", err)
	}

	vector, ok := value.(model.Vector)
	if !ok {
		return 0, errs.Newf(errs.CodeBackendUnavailable, "unexpected prometheus result type %s", value.Type())
	}

	var total int64
	for _, sample := range vector {
		total += int64(sample.Value)
	}
	return total, nil
}
