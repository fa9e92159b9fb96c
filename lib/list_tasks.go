package lib

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/GOSC-CNIC/probewatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultTaskPageSize = 100
	MaxTaskPageSize     = 2000
)

type taskReader struct {
	log *zap.Logger
	db  *gorm.DB
}

// TaskPage is one keyset-paginated slice of the probe-task set, ordered by
// creation descending.
type TaskPage struct {
	HasNext    bool
	PageSize   int
	Marker     string
	NextMarker string
	Items      models.ProbeTasks
}

// ListProbeTasks serves the unauthenticated poller fleet. It takes no lock;
// a page is a consistent snapshot that may trail an in-flight mutation.
func (svc *taskReader) ListProbeTasks(ctx context.Context, marker string, pageSize int) (*TaskPage, error) {
	if pageSize <= 0 {
		pageSize = DefaultTaskPageSize
	}
	if pageSize > MaxTaskPageSize {
		pageSize = MaxTaskPageSize
	}

	q := svc.db.WithContext(ctx).
		Model(&models.ProbeTask{}).
		Order("created_at DESC, url_hash DESC")
	if marker != "" {
		after, afterHash, err := decodeTaskMarker(marker)
		if err != nil {
			return nil, errs.New(errs.CodeInvalidArgument, "malformed marker")
		}
		q = q.Where("created_at < ? OR (created_at = ? AND url_hash < ?)", after, after, afterHash)
	}

	var tasks models.ProbeTasks
	if err := q.Limit(pageSize + 1).Find(&tasks).Error; err != nil {
		return nil, err
	}

	page := &TaskPage{PageSize: pageSize, Marker: marker}
	if len(tasks) > pageSize {
		tasks = tasks[:pageSize]
		last := tasks[len(tasks)-1]
		page.HasNext = true
		page.NextMarker = encodeTaskMarker(last.CreatedAt, last.URLHash)
	}
	page.Items = tasks
	return page, nil
}

// CurrentVersion reads the version singleton without locking.
func (svc *taskReader) CurrentVersion(ctx context.Context) (int64, error) {
	var ver models.TaskVersion
	if err := svc.db.WithContext(ctx).First(&ver, models.TaskVersionID).Error; err != nil {
		return 0, err
	}
	return ver.Version, nil
}

func encodeTaskMarker(created time.Time, urlHash string) string {
	cursor := created.UTC().Format(time.RFC3339Nano) + "|" + urlHash
	return base64.URLEncoding.EncodeToString([]byte(cursor))
}

func decodeTaskMarker(marker string) (time.Time, string, error) {
	decoded, err := base64.URLEncoding.DecodeString(marker)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errs.New(errs.CodeInvalidArgument, "malformed marker")
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return t, parts[1], nil
}
