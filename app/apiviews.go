package app

import (
	"time"

	"github.com/GOSC-CNIC/probewatch/lib"
	"github.com/GOSC-CNIC/probewatch/lib/models"
)

type SubscriptionView struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id,omitempty"`
	OdcID             string `json:"odc_id,omitempty"`
	Scheme            string `json:"scheme"`
	Hostname          string `json:"hostname"`
	URI               string `json:"uri"`
	URL               string `json:"url"`
	URLHash           string `json:"url_hash"`
	IsTamperResistant bool   `json:"is_tamper_resistant"`
	Name              string `json:"name"`
	Remark            string `json:"remark"`
	Attention         bool   `json:"is_attention"`
	Creation          string `json:"creation"`
	Modification      string `json:"modification"`
}

func (view SubscriptionView) From(entity *models.Subscription) SubscriptionView {
	return SubscriptionView{
		ID:                entity.ID,
		UserID:            entity.UserID,
		OdcID:             entity.OdcID,
		Scheme:            entity.Scheme,
		Hostname:          entity.Host,
		URI:               entity.URI,
		URL:               entity.Target().URL(),
		URLHash:           entity.URLHash,
		IsTamperResistant: entity.TamperResistant,
		Name:              entity.Name,
		Remark:            entity.Remark,
		Attention:         entity.Attention,
		Creation:          isoformat(entity.CreatedAt),
		Modification:      isoformat(entity.ModifiedAt),
	}
}

type TaskView struct {
	URL               string `json:"url"`
	URLHash           string `json:"url_hash"`
	IsTamperResistant bool   `json:"is_tamper_resistant"`
	Creation          string `json:"creation"`
}

func (view TaskView) From(entity *models.ProbeTask) TaskView {
	return TaskView{
		URL:               entity.URL,
		URLHash:           entity.URLHash,
		IsTamperResistant: entity.TamperResistant,
		Creation:          isoformat(entity.CreatedAt),
	}
}

type TaskPageView struct {
	HasNext    bool       `json:"has_next"`
	PageSize   int        `json:"page_size"`
	Marker     string     `json:"marker"`
	NextMarker string     `json:"next_marker"`
	Results    []TaskView `json:"results"`
}

func (view TaskPageView) From(page *lib.TaskPage) TaskPageView {
	results := make([]TaskView, len(page.Items))
	for i := range page.Items {
		results[i] = TaskView{}.From(&page.Items[i])
	}
	return TaskPageView{
		HasNext:    page.HasNext,
		PageSize:   page.PageSize,
		Marker:     page.Marker,
		NextMarker: page.NextMarker,
		Results:    results,
	}
}

func isoformat(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
