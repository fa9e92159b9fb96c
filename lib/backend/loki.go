package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/carlmjohnson/requests"
)

// Loki counts request-log lines through the Loki instant-query API.
type Loki struct {
	endpoint  string
	transport http.RoundTripper
}

func NewLoki(endpoint string, transport http.RoundTripper) *Loki {
	return &Loki{endpoint: endpoint, transport: transport}
}

type lokiResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  lokiSampleValue   `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// lokiSampleValue decodes the [unix_ts, "value"] pair of a vector sample.
type lokiSampleValue struct {
	Value string
}

func (v *lokiSampleValue) UnmarshalJSON(b []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &v.Value)
}

func (l *Loki) CountRange(ctx context.Context, selector string, from, to time.Time) (int64, error) {
	window := int(to.Sub(from).Seconds())
	expr := fmt.Sprintf("sum(count_over_time(%s[%ds]))", selector, window)

	var resp lokiResponse
	err := requests.URL(l.endpoint).
		Path("/loki/api/v1/query").
		Param("query", expr).
		Param("time", strconv.FormatInt(to.UnixNano(), 10)).
		Transport(l.transport).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return 0, errs.Wrap(errs.CodeBackendUnavailable, "loki query failed", err)
	}
	if resp.Status != "success" {
		return 0, errs.Newf(errs.CodeBackendUnavailable, "loki query status %q", resp.Status)
	}

	var total int64
	for _, r := range resp.Data.Result {
		f, err := strconv.ParseFloat(r.Value.Value, 64)
		if err != nil {
			return 0, errs.Wrap(errs.CodeBackendUnavailable, "malformed loki sample value", err)
		}
		total += int64(f)
	}
	return total, nil
}
